package domain

import (
	"fmt"
	"time"
)

// Transaction represents one signed blockchain operation tracked from
// submission through confirmation and verification.
type Transaction struct {
	ID              uint64    `json:"id"`
	Hash            *string   `json:"hash"`
	Status          TxStatus  `json:"status"`
	Purpose         TxPurpose `json:"purpose"`
	SignedPayload   string    `json:"signed_payload"`
	UnsignedPayload string    `json:"unsigned_payload"`
	From            string    `json:"from_address"`
	DependsOn       *uint64   `json:"depends_on"`
	ProviderID      *uint64   `json:"provider_id"`
	ActivityID      *uint64   `json:"activity_id"`
	FeeAmount       string    `json:"fee_amount"`
	FeeDenom        string    `json:"fee_denom"`
	GasLimit        uint64    `json:"gas_limit"`
	SubmitHeight    *uint64   `json:"submit_height"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TxStatus string

const (
	TxStatusPending     TxStatus = "pending"
	TxStatusSuccess     TxStatus = "success"
	TxStatusFailure     TxStatus = "failure"
	TxStatusNotExecuted TxStatus = "not_executed"
)

// IsTerminal reports whether the status can never change again.
func (s TxStatus) IsTerminal() bool {
	return s == TxStatusSuccess || s == TxStatusFailure || s == TxStatusNotExecuted
}

type TxPurpose string

const (
	TxPurposeStake   TxPurpose = "stake"
	TxPurposeUnstake TxPurpose = "unstake"
	TxPurposeClaim   TxPurpose = "claim"
	TxPurposeFund    TxPurpose = "fund"
)

// IsRoot reports whether the transaction has no parent dependency.
func (t *Transaction) IsRoot() bool {
	return t.DependsOn == nil
}

// RunKey returns the deterministic scheduling identity for this transaction.
// Both the dispatcher and the aggregator derive executor identities from it,
// so duplicate starts of the same transaction collapse to one run.
func (t *Transaction) RunKey() string {
	return RunKey(t.ID, t.CreatedAt)
}

// RunKey builds a scheduling identity from a transaction id and its creation
// time.
func RunKey(id uint64, createdAt time.Time) string {
	return fmt.Sprintf("tx-%d-%d", id, createdAt.Unix())
}

// TxPatch is a partial update applied to a stored transaction. Nil fields are
// left untouched.
type TxPatch struct {
	Status       *TxStatus
	Hash         *string
	SubmitHeight *uint64
}
