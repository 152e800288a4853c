package domain

import (
	"time"
)

// Node represents a staked address derived from a confirmed stake
// transaction's payload. Nodes are insert-only; the orchestrator never
// updates or deletes them.
type Node struct {
	ID         uint64    `json:"id"`
	Address    string    `json:"address"`
	Owner      string    `json:"owner"`
	Stake      string    `json:"stake"`
	Balance    string    `json:"balance"`
	ProviderID *uint64   `json:"provider_id"`
	TxID       uint64    `json:"tx_id"`
	CreatedAt  time.Time `json:"created_at"`
}
