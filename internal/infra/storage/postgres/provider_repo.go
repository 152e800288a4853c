package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stakeops/orchestrator/internal/core/domain"
	"github.com/stakeops/orchestrator/internal/infra/storage"
)

// ProviderRepo implements storage.ProviderRepository using PostgreSQL.
type ProviderRepo struct {
	db *DB
}

// NewProviderRepo creates a new PostgreSQL provider repository.
func NewProviderRepo(db *DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

type providerRow struct {
	ID        uint64    `db:"id"`
	Name      string    `db:"name"`
	Endpoint  string    `db:"endpoint"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *providerRow) toDomain() *domain.Provider {
	return &domain.Provider{
		ID:        r.ID,
		Name:      r.Name,
		Endpoint:  r.Endpoint,
		Status:    r.Status,
		UpdatedAt: r.UpdatedAt,
	}
}

// Get retrieves a provider by id.
func (r *ProviderRepo) Get(ctx context.Context, id uint64) (*domain.Provider, error) {
	query := `SELECT id, name, endpoint, status, updated_at FROM providers WHERE id = $1`

	var row providerRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// List retrieves all providers.
func (r *ProviderRepo) List(ctx context.Context) ([]*domain.Provider, error) {
	query := `SELECT id, name, endpoint, status, updated_at FROM providers ORDER BY id ASC`

	var rows []providerRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	providers := make([]*domain.Provider, 0, len(rows))
	for i := range rows {
		providers = append(providers, rows[i].toDomain())
	}
	return providers, nil
}

// UpdateStatus records the result of a provider status poll.
func (r *ProviderRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	query := `UPDATE providers SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update provider %d status: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrProviderNotFound
	}
	return nil
}
