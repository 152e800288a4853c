package postgres

import (
	"context"
	"fmt"

	"github.com/stakeops/orchestrator/internal/core/domain"
)

// NodeRepo implements storage.NodeRepository using PostgreSQL.
type NodeRepo struct {
	db *DB
}

// NewNodeRepo creates a new PostgreSQL node repository.
func NewNodeRepo(db *DB) *NodeRepo {
	return &NodeRepo{db: db}
}

// InsertBatch inserts the nodes derived from one confirmed transaction.
// Re-running the projector for the same transaction must not duplicate rows,
// so inserts conflict on (address, tx_id) and are ignored.
func (r *NodeRepo) InsertBatch(ctx context.Context, nodes []*domain.Node, txID uint64) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO nodes (address, owner, stake, balance, provider_id, tx_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (address, tx_id) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range nodes {
		_, err := stmt.ExecContext(ctx, n.Address, n.Owner, n.Stake, n.Balance, n.ProviderID, txID)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.Address, err)
		}
	}

	return tx.Commit()
}
