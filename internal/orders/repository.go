package orders

import (
	"context"
	"time"
)

// Repository defines the interface for order sweep data access.
type Repository interface {
	// SelectStalePending returns ids of pending orders created before
	// cutoff, up to limit.
	SelectStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// BulkExpire transitions the given orders to expired with a
	// refreshed update timestamp, guarding on pending status, and
	// returns the number of rows changed.
	BulkExpire(ctx context.Context, ids []string) (int64, error)
}
