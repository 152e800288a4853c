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

// ActivityRepo implements storage.ActivityRepository using PostgreSQL.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new PostgreSQL activity repository.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

type activityRow struct {
	ID        uint64    `db:"id"`
	Type      string    `db:"type"`
	Status    string    `db:"status"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *activityRow) toDomain() *domain.Activity {
	return &domain.Activity{
		ID:        r.ID,
		Type:      domain.ActivityType(r.Type),
		Status:    domain.ActivityStatus(r.Status),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Get retrieves an activity by id.
func (r *ActivityRepo) Get(ctx context.Context, id uint64) (*domain.Activity, error) {
	query := `SELECT id, type, status, created_by, created_at, updated_at FROM activities WHERE id = $1`

	var row activityRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// Update applies a partial update to an activity.
func (r *ActivityRepo) Update(ctx context.Context, id uint64, patch domain.ActivityPatch) error {
	if patch.Status == nil {
		return nil
	}

	query := `UPDATE activities SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(*patch.Status))
	if err != nil {
		return fmt.Errorf("failed to update activity %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrActivityNotFound
	}
	return nil
}

// List retrieves all activities.
func (r *ActivityRepo) List(ctx context.Context) ([]*domain.Activity, error) {
	query := `SELECT id, type, status, created_by, created_at, updated_at FROM activities ORDER BY created_at ASC`

	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	activities := make([]*domain.Activity, 0, len(rows))
	for i := range rows {
		activities = append(activities, rows[i].toDomain())
	}
	return activities, nil
}
