package reminders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wishlane/dispatcher/internal/domain"
	"github.com/wishlane/dispatcher/internal/notify"
)

const reminderTemplate = "event_reminder"

// Summary reports one reminder pass. Checked counts events examined;
// Created counts reminders dispatched.
type Summary struct {
	Checked int `json:"checked"`
	Created int `json:"created"`
}

// Scheduler computes and emits multi-day-ahead event reminders without
// ever double-sending. The reminder log is the sole idempotency
// mechanism and is checked before any side effect.
type Scheduler struct {
	repo       Repository
	renderer   *notify.Renderer
	dispatcher *notify.Dispatcher
	windows    []Window
}

// NewScheduler creates a reminder scheduler over the given windows.
func NewScheduler(repo Repository, renderer *notify.Renderer, dispatcher *notify.Dispatcher, windows []Window) *Scheduler {
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	return &Scheduler{
		repo:       repo,
		renderer:   renderer,
		dispatcher: dispatcher,
		windows:    windows,
	}
}

// Run executes one reminder pass for all windows. A query failure in
// one window skips that window only; the others still run.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	for _, window := range s.windows {
		dayStart, dayEnd := dayBounds(now, window.Days)

		events, err := s.repo.EventsInRange(ctx, dayStart, dayEnd)
		if err != nil {
			slog.Error("failed to query events for window",
				"window", window.Type,
				"error", err,
			)
			continue
		}

		for _, ev := range events {
			summary.Checked++
			recordReminderChecked(window.Type)

			if s.remind(ctx, ev, window) {
				summary.Created++
				recordReminderCreated(window.Type)
			}
		}
	}

	return summary, nil
}

// remind handles one (event, window) pair. Reports whether a reminder
// was dispatched.
func (s *Scheduler) remind(ctx context.Context, ev domain.EventWithHost, window Window) bool {
	exists, err := s.repo.HasReminder(ctx, ev.Event.ID, window.Type)
	if err != nil {
		slog.Error("failed to check reminder log",
			"event_id", ev.Event.ID,
			"window", window.Type,
			"error", err,
		)
		return false
	}
	if exists {
		return false
	}

	if !ev.Host.CanBeNotified() {
		slog.Debug("skipping event with unreachable host", "event_id", ev.Event.ID)
		return false
	}

	subject, body, err := s.renderer.Render(reminderTemplate, map[string]any{
		"event_title": ev.Event.Title,
		"event_date":  ev.Event.EventDate,
		"days_label":  window.Label,
		"host_name":   ev.Host.FullName(),
	})
	if err != nil {
		slog.Error("failed to render reminder",
			"event_id", ev.Event.ID,
			"window", window.Type,
			"error", err,
		)
		return false
	}

	msg := notify.Message{
		UserID:  ev.Host.ID,
		Email:   ev.Host.Email,
		Subject: subject,
		Body:    body,
		Data: map[string]string{
			"event_id":      ev.Event.ID,
			"reminder_type": window.Type,
		},
	}

	// Composite fan-out: in-app record, templated email, push payload.
	dispatchErr := s.dispatcher.Dispatch(ctx, msg, []notify.Channel{
		notify.ChannelInApp,
		notify.ChannelEmail,
		notify.ChannelPush,
	})
	if dispatchErr != nil {
		slog.Error("reminder dispatch failed",
			"event_id", ev.Event.ID,
			"window", window.Type,
			"error", dispatchErr,
		)
	}

	// Log-after-attempt: record the pair immediately after the dispatch
	// call returns, regardless of per-leg outcomes. Logging first would
	// permanently suppress the reminder if dispatch then failed.
	if err := s.repo.RecordReminder(ctx, ev.Event.ID, window.Type); err != nil {
		if errors.Is(err, ErrDuplicateReminder) {
			slog.Debug("reminder recorded by concurrent run",
				"event_id", ev.Event.ID,
				"window", window.Type,
			)
			return false
		}
		slog.Error("failed to record reminder",
			"event_id", ev.Event.ID,
			"window", window.Type,
			"error", err,
		)
	}

	slog.Info("reminder dispatched",
		"event_id", ev.Event.ID,
		"window", window.Type,
		"host_id", ev.Host.ID,
	)

	return true
}

// dayBounds returns the UTC start and end of the calendar day
// offsetDays ahead of now.
func dayBounds(now time.Time, offsetDays int) (time.Time, time.Time) {
	target := now.UTC().AddDate(0, 0, offsetDays)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}
