package reminders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wishlane/dispatcher/internal/domain"
	"github.com/wishlane/dispatcher/internal/notify"
)

// fakeRepository implements Repository in memory for testing.
type fakeRepository struct {
	events []domain.EventWithHost
	log    map[string]bool

	queryErrRemaining int // fail this many EventsInRange calls, then succeed
	hasReminderErr    error
	recordErr         error
	recorded          []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{log: make(map[string]bool)}
}

func logKey(eventID, reminderType string) string {
	return eventID + "|" + reminderType
}

func (f *fakeRepository) addEvent(id string, date time.Time, host domain.Host) {
	f.events = append(f.events, domain.EventWithHost{
		Event: domain.Event{
			ID:        id,
			Title:     "Event " + id,
			EventDate: date,
			HostID:    host.ID,
		},
		Host: host,
	})
}

func (f *fakeRepository) EventsInRange(_ context.Context, from, to time.Time) ([]domain.EventWithHost, error) {
	if f.queryErrRemaining > 0 {
		f.queryErrRemaining--
		return nil, errors.New("query failed")
	}
	result := make([]domain.EventWithHost, 0)
	for _, ev := range f.events {
		d := ev.Event.EventDate
		if !d.Before(from) && !d.After(to) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (f *fakeRepository) HasReminder(_ context.Context, eventID, reminderType string) (bool, error) {
	if f.hasReminderErr != nil {
		return false, f.hasReminderErr
	}
	return f.log[logKey(eventID, reminderType)], nil
}

func (f *fakeRepository) RecordReminder(_ context.Context, eventID, reminderType string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	key := logKey(eventID, reminderType)
	if f.log[key] {
		return ErrDuplicateReminder
	}
	f.log[key] = true
	f.recorded = append(f.recorded, key)
	return nil
}

// fakeSender implements notify.Sender for testing.
type fakeSender struct {
	channel notify.Channel
	err     error
	sent    []notify.Message
}

func (s *fakeSender) Type() notify.Channel { return s.channel }

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testHost(id string) domain.Host {
	return domain.Host{
		ID:        id,
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     fmt.Sprintf("%s@example.com", id),
	}
}

// daysAhead returns noon UTC on the day offsetDays from now, safely
// inside the scheduler's day bounds.
func daysAhead(now time.Time, offsetDays int) time.Time {
	target := now.UTC().AddDate(0, 0, offsetDays)
	return time.Date(target.Year(), target.Month(), target.Day(), 12, 0, 0, 0, time.UTC)
}

func newTestScheduler(t *testing.T, repo Repository, email *fakeSender, extra ...notify.Sender) *Scheduler {
	t.Helper()
	renderer, err := notify.NewRenderer()
	require.NoError(t, err)
	senders := append([]notify.Sender{email}, extra...)
	return NewScheduler(repo, renderer, notify.NewDispatcher(senders...), DefaultWindows())
}

func TestScheduler_Run_CreatesReminders(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("wedding", daysAhead(now, 7), testHost("h1"))
	repo.addEvent("shower", daysAhead(now, 3), testHost("h2"))
	repo.addEvent("birthday", daysAhead(now, 1), testHost("h3"))

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 3, Created: 3}, summary)
	assert.Len(t, email.sent, 3)
	assert.ElementsMatch(t, []string{
		"wedding|7_day",
		"shower|3_day",
		"birthday|1_day",
	}, repo.recorded)

	// Rendered subject mentions the window.
	assert.Contains(t, email.sent[0].Subject, "7 days away")
}

func TestScheduler_Run_Idempotent(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("wedding", daysAhead(now, 7), testHost("h1"))

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	ctx := context.Background()

	first, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 1}, first)

	// Second run the same day: checked again, nothing re-sent.
	second, err := scheduler.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 0}, second)
	assert.Len(t, email.sent, 1)
}

func TestScheduler_Run_EventOutsideWindows(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("far-off", daysAhead(now, 14), testHost("h1"))
	repo.addEvent("tomorrow-ish", daysAhead(now, 2), testHost("h2"))

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, email.sent)
}

func TestScheduler_Run_SkipsUnreachableHost(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("orphan", daysAhead(now, 7), domain.Host{})

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 0}, summary)
	assert.Empty(t, email.sent)
	assert.Empty(t, repo.recorded)
}

func TestScheduler_Run_WindowQueryFailureIsolated(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("shower", daysAhead(now, 3), testHost("h1"))
	repo.queryErrRemaining = 1 // the 7-day window query fails

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 1}, summary)
}

func TestScheduler_Run_RecordsDespiteDispatchFailure(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("wedding", daysAhead(now, 7), testHost("h1"))

	email := &fakeSender{
		channel: notify.ChannelEmail,
		err:     errors.New("smtp down"),
	}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	// Log-after-attempt: the pair is recorded even though delivery
	// failed, so the host is not re-notified next run.
	assert.Equal(t, Summary{Checked: 1, Created: 1}, summary)
	assert.Equal(t, []string{"wedding|7_day"}, repo.recorded)

	second, err := scheduler.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 0}, second)
}

func TestScheduler_Run_ConcurrentDuplicateNotCounted(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("wedding", daysAhead(now, 7), testHost("h1"))
	repo.recordErr = ErrDuplicateReminder

	email := &fakeSender{channel: notify.ChannelEmail}
	scheduler := newTestScheduler(t, repo, email)

	summary, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Summary{Checked: 1, Created: 0}, summary)
}

func TestScheduler_Run_FansOutToAllChannels(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	repo := newFakeRepository()
	repo.addEvent("wedding", daysAhead(now, 7), testHost("h1"))

	email := &fakeSender{channel: notify.ChannelEmail}
	inApp := &fakeSender{channel: notify.ChannelInApp}
	push := &fakeSender{channel: notify.ChannelPush}
	scheduler := newTestScheduler(t, repo, email, inApp, push)

	_, err := scheduler.Run(context.Background(), now)

	require.NoError(t, err)
	assert.Len(t, email.sent, 1)
	assert.Len(t, inApp.sent, 1)
	assert.Len(t, push.sent, 1)

	assert.Equal(t, "h1", email.sent[0].UserID)
	assert.Equal(t, "wedding", email.sent[0].Data["event_id"])
	assert.Equal(t, "7_day", email.sent[0].Data["reminder_type"])
}

func TestDayBounds(t *testing.T) {
	now := time.Date(2026, 6, 1, 23, 45, 0, 0, time.UTC)

	start, end := dayBounds(now, 7)

	assert.Equal(t, time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 6, 8, 23, 59, 59, 999000000, time.UTC), end)
}
