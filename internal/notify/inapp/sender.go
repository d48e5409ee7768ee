// Package inapp writes in-app notification records for the web UI's
// notification bell.
package inapp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wishlane/dispatcher/internal/notify"
)

// Sender implements the in-app channel by inserting a row into
// user_notifications.
type Sender struct {
	db *pgxpool.Pool
}

// NewSender creates a new in-app sender.
func NewSender(db *pgxpool.Pool) *Sender {
	return &Sender{db: db}
}

// Type returns the delivery channel.
func (s *Sender) Type() notify.Channel {
	return notify.ChannelInApp
}

// Send records the message as an unread in-app notification. Messages
// without a user id are skipped: the recipient has no account to show
// the notification in.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if msg.UserID == "" {
		slog.Debug("in-app notification skipped, no user id")
		return nil
	}

	query := `
		INSERT INTO user_notifications (id, user_id, title, body)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New().String(), msg.UserID, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("insert user notification: %w", err)
	}

	return nil
}
