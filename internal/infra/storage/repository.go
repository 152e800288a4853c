package storage

import (
	"context"
	"errors"

	"github.com/stakeops/orchestrator/internal/core/domain"
)

var (
	// ErrTransactionNotFound is returned when a transaction doesn't exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrActivityNotFound is returned when an activity doesn't exist
	ErrActivityNotFound = errors.New("activity not found")

	// ErrProviderNotFound is returned when a provider doesn't exist
	ErrProviderNotFound = errors.New("provider not found")

	// ErrTerminalStatus is returned when an update would move a transaction
	// away from a terminal status
	ErrTerminalStatus = errors.New("transaction status is terminal")
)

// TransactionRepository handles transaction storage operations. It is the
// single source of truth for execution state; executors re-read it before
// acting so any run can be restarted from the last persisted checkpoint.
type TransactionRepository interface {
	// Get retrieves a transaction by id
	Get(ctx context.Context, id uint64) (*domain.Transaction, error)

	// Update applies a partial update to a transaction
	Update(ctx context.Context, id uint64, patch domain.TxPatch) error

	// ListPending retrieves all transactions with status pending
	ListPending(ctx context.Context) ([]*domain.Transaction, error)

	// ListDependants retrieves all transactions whose depends_on equals id
	ListDependants(ctx context.Context, id uint64) ([]*domain.Transaction, error)

	// ListByActivity retrieves all transactions belonging to an activity
	ListByActivity(ctx context.Context, activityID uint64) ([]*domain.Transaction, error)
}

// ActivityRepository handles activity storage operations.
type ActivityRepository interface {
	// Get retrieves an activity by id
	Get(ctx context.Context, id uint64) (*domain.Activity, error)

	// Update applies a partial update to an activity
	Update(ctx context.Context, id uint64, patch domain.ActivityPatch) error

	// List retrieves all activities
	List(ctx context.Context) ([]*domain.Activity, error)
}

// NodeRepository handles derived node records.
type NodeRepository interface {
	// InsertBatch inserts the nodes derived from one confirmed transaction
	InsertBatch(ctx context.Context, nodes []*domain.Node, txID uint64) error
}

// ProviderRepository handles provider reference data.
type ProviderRepository interface {
	// Get retrieves a provider by id
	Get(ctx context.Context, id uint64) (*domain.Provider, error)

	// List retrieves all providers
	List(ctx context.Context) ([]*domain.Provider, error)

	// UpdateStatus records the result of a provider status poll
	UpdateStatus(ctx context.Context, id uint64, status string) error
}
