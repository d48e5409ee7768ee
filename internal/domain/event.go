// Package domain contains core types shared across the dispatcher.
package domain

import (
	"strings"
	"time"
)

// Event represents a gift-registry event (wedding, birthday, baby shower).
// Events are owned by the surrounding application; the dispatcher only
// reads them to compute reminders.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventDate time.Time `json:"event_date"`
	HostID    string    `json:"host_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Host is the registry owner who receives event reminders.
type Host struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName returns the host's display name, falling back to the email
// local part when name fields are empty.
func (h Host) FullName() string {
	name := strings.TrimSpace(h.FirstName + " " + h.LastName)
	if name != "" {
		return name
	}
	if at := strings.Index(h.Email, "@"); at > 0 {
		return h.Email[:at]
	}
	return h.Email
}

// CanBeNotified reports whether the host is reachable at all. An event
// whose host has neither an ID nor an email is skipped by the reminder
// scheduler.
func (h Host) CanBeNotified() bool {
	return h.ID != "" || h.Email != ""
}

// EventWithHost joins an event with its host contact info, as returned
// by the reminder window query.
type EventWithHost struct {
	Event Event
	Host  Host
}
