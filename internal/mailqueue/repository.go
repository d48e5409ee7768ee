// Package mailqueue implements the persistent outbound-email queue and
// its batch processor.
package mailqueue

import (
	"context"
	"time"
)

// Repository defines the interface for queue data access.
type Repository interface {
	// Enqueue inserts a new pending item.
	Enqueue(ctx context.Context, item *Item) error

	// SelectPending returns up to batchSize pending items with
	// attempts below maxAttempts, oldest first.
	SelectPending(ctx context.Context, batchSize, maxAttempts int) ([]*Item, error)

	// Claim conditionally transitions a pending item to processing and
	// increments its attempt counter, returning the post-increment
	// count. Returns ErrNotClaimable if the item is no longer pending.
	Claim(ctx context.Context, id string) (attempts int, err error)

	// MarkSent finalizes a delivered item and stamps the send time.
	MarkSent(ctx context.Context, id string) error

	// MarkFailed finalizes an item that exhausted its retry budget or
	// hit a permanent error.
	MarkFailed(ctx context.Context, id string, sendErr error) error

	// Release reverts a processing item to pending so the next cycle
	// retries it, recording the delivery error.
	Release(ctx context.Context, id string, sendErr error) error

	// RecoverStuck resolves items stuck in processing longer than
	// olderThan. The claim that stranded them already counted the
	// attempt, so items with retry budget left go back to pending while
	// items stuck on their final attempt go straight to failed.
	RecoverStuck(ctx context.Context, olderThan time.Duration, maxAttempts int) (requeued, failed int64, err error)

	// Stats returns queue size by status.
	Stats(ctx context.Context) (*Stats, error)
}
