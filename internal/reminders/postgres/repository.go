// Package postgres provides the PostgreSQL implementation of the
// reminders repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wishlane/dispatcher/internal/domain"
	"github.com/wishlane/dispatcher/internal/reminders"
)

const uniqueViolation = "23505"

// Repository implements reminders.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EventsInRange returns events dated within [from, to] joined with
// host contact info. Events whose host row is missing still come back,
// with empty host fields, so the scheduler can count them as checked.
func (r *Repository) EventsInRange(ctx context.Context, from, to time.Time) ([]domain.EventWithHost, error) {
	query := `
		SELECT e.id, e.title, e.event_date, e.host_id, e.created_at, e.updated_at,
		       COALESCE(h.id, ''), COALESCE(h.first_name, ''),
		       COALESCE(h.last_name, ''), COALESCE(h.email, '')
		FROM events e
		LEFT JOIN hosts h ON h.id = e.host_id
		WHERE e.event_date BETWEEN $1 AND $2
		ORDER BY e.event_date ASC
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("select events in range: %w", err)
	}
	defer rows.Close()

	events := make([]domain.EventWithHost, 0)
	for rows.Next() {
		var ev domain.EventWithHost
		err := rows.Scan(
			&ev.Event.ID,
			&ev.Event.Title,
			&ev.Event.EventDate,
			&ev.Event.HostID,
			&ev.Event.CreatedAt,
			&ev.Event.UpdatedAt,
			&ev.Host.ID,
			&ev.Host.FirstName,
			&ev.Host.LastName,
			&ev.Host.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// HasReminder reports whether the (event, type) pair was already
// recorded.
func (r *Repository) HasReminder(ctx context.Context, eventID, reminderType string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM reminder_log WHERE event_id = $1 AND reminder_type = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, eventID, reminderType).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reminder log: %w", err)
	}
	return exists, nil
}

// RecordReminder inserts the dedup entry. The unique index on
// (event_id, reminder_type) makes a concurrent duplicate insert fail
// atomically instead of overwriting.
func (r *Repository) RecordReminder(ctx context.Context, eventID, reminderType string) error {
	query := `INSERT INTO reminder_log (event_id, reminder_type) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, eventID, reminderType); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return reminders.ErrDuplicateReminder
		}
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}
