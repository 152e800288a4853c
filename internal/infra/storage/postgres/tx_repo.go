package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

const txColumns = `
	id, hash, status, purpose, signed_payload, unsigned_payload, from_address,
	depends_on, provider_id, activity_id, fee_amount, fee_denom, gas_limit,
	submit_height, created_by, created_at, updated_at
`

type txRow struct {
	ID              uint64         `db:"id"`
	Hash            *string        `db:"hash"`
	Status          string         `db:"status"`
	Purpose         string         `db:"purpose"`
	SignedPayload   string         `db:"signed_payload"`
	UnsignedPayload string         `db:"unsigned_payload"`
	From            string         `db:"from_address"`
	DependsOn       *uint64        `db:"depends_on"`
	ProviderID      *uint64        `db:"provider_id"`
	ActivityID      *uint64        `db:"activity_id"`
	FeeAmount       sql.NullString `db:"fee_amount"`
	FeeDenom        sql.NullString `db:"fee_denom"`
	GasLimit        uint64         `db:"gas_limit"`
	SubmitHeight    *uint64        `db:"submit_height"`
	CreatedBy       string         `db:"created_by"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *txRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:              r.ID,
		Hash:            r.Hash,
		Status:          domain.TxStatus(r.Status),
		Purpose:         domain.TxPurpose(r.Purpose),
		SignedPayload:   r.SignedPayload,
		UnsignedPayload: r.UnsignedPayload,
		From:            r.From,
		DependsOn:       r.DependsOn,
		ProviderID:      r.ProviderID,
		ActivityID:      r.ActivityID,
		FeeAmount:       r.FeeAmount.String,
		FeeDenom:        r.FeeDenom.String,
		GasLimit:        r.GasLimit,
		SubmitHeight:    r.SubmitHeight,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// Get retrieves a transaction by id.
func (r *TxRepo) Get(ctx context.Context, id uint64) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`

	var row txRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// Update applies a partial update to a transaction. Status changes are guarded
// so a terminal status is never overwritten.
func (r *TxRepo) Update(ctx context.Context, id uint64, patch domain.TxPatch) error {
	set := []string{"updated_at = NOW()"}
	args := []any{id}

	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Hash != nil {
		args = append(args, *patch.Hash)
		set = append(set, fmt.Sprintf("hash = $%d", len(args)))
	}
	if patch.SubmitHeight != nil {
		args = append(args, *patch.SubmitHeight)
		set = append(set, fmt.Sprintf("submit_height = $%d", len(args)))
	}

	query := `UPDATE transactions SET ` + strings.Join(set, ", ") + ` WHERE id = $1`
	if patch.Status != nil {
		query += ` AND status NOT IN ('success', 'failure', 'not_executed')`
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is missing or a status change hit the terminal guard.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		if patch.Status != nil {
			return storage.ErrTerminalStatus
		}
	}
	return nil
}

// ListPending retrieves all transactions with status pending.
func (r *TxRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE status = 'pending' ORDER BY created_at ASC`

	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	return toDomainList(rows), nil
}

// ListDependants retrieves all transactions whose depends_on equals id.
func (r *TxRepo) ListDependants(ctx context.Context, id uint64) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE depends_on = $1 ORDER BY id ASC`

	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to list dependants of %d: %w", id, err)
	}
	return toDomainList(rows), nil
}

// ListByActivity retrieves all transactions belonging to an activity.
func (r *TxRepo) ListByActivity(ctx context.Context, activityID uint64) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE activity_id = $1 ORDER BY id ASC`

	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query, activityID); err != nil {
		return nil, fmt.Errorf("failed to list transactions of activity %d: %w", activityID, err)
	}
	return toDomainList(rows), nil
}

func toDomainList(rows []txRow) []*domain.Transaction {
	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		txs = append(txs, rows[i].toDomain())
	}
	return txs
}
