package reminders

import (
	"context"
	"errors"
	"time"

	"github.com/wishlane/dispatcher/internal/domain"
)

// ErrDuplicateReminder is returned when a reminder log insert hits the
// (event, type) uniqueness constraint. Under concurrent dispatcher
// runs this is the harmless loser of the race.
var ErrDuplicateReminder = errors.New("reminder already recorded")

// Repository defines the interface for reminder data access.
type Repository interface {
	// EventsInRange returns events whose date falls within [from, to],
	// joined with host contact info.
	EventsInRange(ctx context.Context, from, to time.Time) ([]domain.EventWithHost, error)

	// HasReminder reports whether a reminder of the given type was
	// already recorded for the event.
	HasReminder(ctx context.Context, eventID, reminderType string) (bool, error)

	// RecordReminder inserts the dedup log entry. Must fail with
	// ErrDuplicateReminder on a duplicate (event, type) pair rather
	// than overwrite.
	RecordReminder(ctx context.Context, eventID, reminderType string) error
}
