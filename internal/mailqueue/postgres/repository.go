// Package postgres provides the PostgreSQL implementation of the
// mailqueue repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wishlane/dispatcher/internal/mailqueue"
)

// Repository implements mailqueue.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a new pending item.
func (r *Repository) Enqueue(ctx context.Context, item *mailqueue.Item) error {
	query := `
		INSERT INTO email_queue (id, recipient, template_id, variables, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.Recipient,
		item.TemplateID,
		item.Variables,
		mailqueue.StatusPending,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	item.Status = mailqueue.StatusPending
	return nil
}

// SelectPending returns up to batchSize pending items with attempts
// below maxAttempts, oldest first for FIFO fairness.
func (r *Repository) SelectPending(ctx context.Context, batchSize, maxAttempts int) ([]*mailqueue.Item, error) {
	query := `
		SELECT id, recipient, template_id, variables, status, attempts, last_error,
		       created_at, updated_at, processing_started_at, sent_at
		FROM email_queue
		WHERE status = 'pending' AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, batchSize, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	items := make([]*mailqueue.Item, 0)
	for rows.Next() {
		var item mailqueue.Item
		err := rows.Scan(
			&item.ID,
			&item.Recipient,
			&item.TemplateID,
			&item.Variables,
			&item.Status,
			&item.Attempts,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.ProcessingStartedAt,
			&item.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending items: %w", err)
	}

	return items, nil
}

// Claim conditionally transitions a pending item to processing. The
// status guard makes the claim atomic against concurrent runs.
func (r *Repository) Claim(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE email_queue
		SET status = 'processing', attempts = attempts + 1,
		    processing_started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRow(ctx, query, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, mailqueue.ErrNotClaimable
		}
		return 0, fmt.Errorf("claim item: %w", err)
	}
	return attempts, nil
}

// MarkSent finalizes a delivered item.
func (r *Repository) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE email_queue
		SET status = 'sent', sent_at = NOW(), updated_at = NOW(), last_error = ''
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mailqueue.ErrItemNotFound
	}
	return nil
}

// MarkFailed finalizes an item with its terminal error.
func (r *Repository) MarkFailed(ctx context.Context, id string, sendErr error) error {
	query := `
		UPDATE email_queue
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, errString(sendErr))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mailqueue.ErrItemNotFound
	}
	return nil
}

// Release reverts a processing item to pending for the next cycle.
func (r *Repository) Release(ctx context.Context, id string, sendErr error) error {
	query := `
		UPDATE email_queue
		SET status = 'pending', last_error = $2,
		    processing_started_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	result, err := r.db.Exec(ctx, query, id, errString(sendErr))
	if err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return mailqueue.ErrItemNotFound
	}
	return nil
}

// RecoverStuck resolves items stuck in processing. Items whose claim
// consumed the last attempt go to failed; requeueing them would leave
// rows the pending select can never pick up again. The rest revert to
// pending for the next cycle.
func (r *Repository) RecoverStuck(ctx context.Context, olderThan time.Duration, maxAttempts int) (requeued, failed int64, err error) {
	failQuery := `
		UPDATE email_queue
		SET status = 'failed', last_error = 'stuck in processing: max attempts exceeded', updated_at = NOW()
		WHERE status = 'processing'
		  AND processing_started_at < NOW() - make_interval(secs => $1)
		  AND attempts >= $2
	`
	failResult, err := r.db.Exec(ctx, failQuery, olderThan.Seconds(), maxAttempts)
	if err != nil {
		return 0, 0, fmt.Errorf("fail exhausted stuck items: %w", err)
	}
	failed = failResult.RowsAffected()

	requeueQuery := `
		UPDATE email_queue
		SET status = 'pending', processing_started_at = NULL, updated_at = NOW()
		WHERE status = 'processing'
		  AND processing_started_at < NOW() - make_interval(secs => $1)
		  AND attempts < $2
	`
	requeueResult, err := r.db.Exec(ctx, requeueQuery, olderThan.Seconds(), maxAttempts)
	if err != nil {
		return 0, failed, fmt.Errorf("recover stuck items: %w", err)
	}

	return requeueResult.RowsAffected(), failed, nil
}

// Stats returns queue size by status.
func (r *Repository) Stats(ctx context.Context) (*mailqueue.Stats, error) {
	query := `SELECT status, COUNT(*) FROM email_queue GROUP BY status`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats mailqueue.Stats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch mailqueue.Status(status) {
		case mailqueue.StatusPending:
			stats.Pending = count
		case mailqueue.StatusProcessing:
			stats.Processing = count
		case mailqueue.StatusSent:
			stats.Sent = count
		case mailqueue.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	return &stats, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
