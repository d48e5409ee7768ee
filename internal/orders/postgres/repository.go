// Package postgres provides the PostgreSQL implementation of the
// orders repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements orders.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SelectStalePending returns ids of pending orders older than cutoff.
func (r *Repository) SelectStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM orders
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale pending orders: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}

	return ids, nil
}

// BulkExpire transitions the given orders to expired in one update.
// The status guard keeps the operation safe against orders paid
// between selection and update.
func (r *Repository) BulkExpire(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE orders
		SET status = 'expired', updated_at = NOW()
		WHERE id = ANY($1) AND status = 'pending'
	`
	result, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk expire: %w", err)
	}

	return result.RowsAffected(), nil
}
