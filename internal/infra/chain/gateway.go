package chain

import (
	"context"
)

// SubmitResult is the chain's acknowledgement of a broadcast transaction.
type SubmitResult struct {
	Hash string `json:"hash"`
}

// TxResult is the verified on-chain outcome of a transaction. Code 0 means
// the transaction executed successfully.
type TxResult struct {
	Success bool   `json:"success"`
	Code    uint32 `json:"code"`
	GasUsed uint64 `json:"gas_used"`
}

// Gateway abstracts the blockchain RPC endpoint the orchestrator submits to
// and polls. Implementations must be safe for concurrent use.
type Gateway interface {
	// CurrentHeight returns the chain's latest block height
	CurrentHeight(ctx context.Context) (uint64, error)

	// Submit broadcasts a signed transaction payload and returns its hash
	Submit(ctx context.Context, signedPayload string) (*SubmitResult, error)

	// GetTxResult retrieves the execution result of a confirmed transaction
	GetTxResult(ctx context.Context, hash string) (*TxResult, error)
}
