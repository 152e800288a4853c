package domain

import (
	"time"
)

// Provider is reference data for a staking provider. The orchestrator only
// reads it to notify of newly staked addresses; a background poll refreshes
// Status.
type Provider struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Endpoint  string    `json:"endpoint"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	ProviderStatusUp      = "up"
	ProviderStatusDown    = "down"
	ProviderStatusUnknown = "unknown"
)
