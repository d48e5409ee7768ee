//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wishlane/dispatcher/internal/testutil"
)

// dispatchResult mirrors the aggregate JSON returned by the trigger
// endpoint.
type dispatchResult struct {
	Success bool `json:"success"`
	Emails  struct {
		Processed int    `json:"processed"`
		Sent      int    `json:"sent"`
		Failed    int    `json:"failed"`
		Error     string `json:"error"`
	} `json:"emails"`
	Reminders struct {
		Checked int    `json:"checked"`
		Created int    `json:"created"`
		Error   string `json:"error"`
	} `json:"reminders"`
	ExpiredOrders struct {
		Expired int    `json:"expired"`
		Error   string `json:"error"`
	} `json:"expiredOrders"`
}

// resetState truncates all dispatcher tables and clears the Mailpit
// inbox so each test starts from a clean slate.
func resetState(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := testDB.Exec(ctx, `
		TRUNCATE email_queue, reminder_log, events, hosts, orders, user_notifications
	`)
	require.NoError(t, err)
	require.NoError(t, mailpitClient.DeleteAllMessages())
}

// runDispatch triggers one dispatch cycle and decodes the aggregate
// result.
func runDispatch(t *testing.T, client *testutil.Client) dispatchResult {
	t.Helper()

	resp, err := client.POST("/api/v1/dispatch/run", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result dispatchResult
	testutil.DecodeJSON(t, resp, &result)
	return result
}

// seedQueueItem inserts an email queue row directly, bypassing the
// producer API. Returns the generated id.
func seedQueueItem(t *testing.T, recipient, templateID string, variables map[string]any, opts ...queueItemOption) string {
	t.Helper()

	row := &queueItemRow{
		id:        uuid.New().String(),
		recipient: recipient,
		template:  templateID,
		variables: variables,
		status:    "pending",
		createdAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(row)
	}
	if row.variables == nil {
		row.variables = map[string]any{}
	}

	_, err := testDB.Exec(context.Background(), `
		INSERT INTO email_queue (id, recipient, template_id, variables, status, attempts, created_at, processing_started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, row.id, row.recipient, row.template, row.variables, row.status, row.attempts, row.createdAt, row.processingStartedAt)
	require.NoError(t, err)
	return row.id
}

type queueItemRow struct {
	id                  string
	recipient           string
	template            string
	variables           map[string]any
	status              string
	attempts            int
	createdAt           time.Time
	processingStartedAt *time.Time
}

type queueItemOption func(*queueItemRow)

func withAttempts(n int) queueItemOption {
	return func(r *queueItemRow) { r.attempts = n }
}

func withCreatedAt(ts time.Time) queueItemOption {
	return func(r *queueItemRow) { r.createdAt = ts }
}

// withStuckProcessing marks the row as claimed by a run that never
// finished, with the claim old enough for stuck recovery to fire.
func withStuckProcessing(since time.Time) queueItemOption {
	return func(r *queueItemRow) {
		r.status = "processing"
		r.processingStartedAt = &since
	}
}

// queueItemState reads back the status, attempts and last error of a
// queue item.
func queueItemState(t *testing.T, id string) (status string, attempts int, lastError string) {
	t.Helper()
	err := testDB.QueryRow(context.Background(), `
		SELECT status, attempts, last_error FROM email_queue WHERE id = $1
	`, id).Scan(&status, &attempts, &lastError)
	require.NoError(t, err)
	return status, attempts, lastError
}

// seedHost inserts a host row and returns its id.
func seedHost(t *testing.T, firstName, email string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := testDB.Exec(context.Background(), `
		INSERT INTO hosts (id, first_name, last_name, email) VALUES ($1, $2, '', $3)
	`, id, firstName, email)
	require.NoError(t, err)
	return id
}

// seedEvent inserts an event row and returns its id.
func seedEvent(t *testing.T, hostID, title string, eventDate time.Time) string {
	t.Helper()
	id := uuid.New().String()
	_, err := testDB.Exec(context.Background(), `
		INSERT INTO events (id, title, event_date, host_id) VALUES ($1, $2, $3, $4)
	`, id, title, eventDate, hostID)
	require.NoError(t, err)
	return id
}

// daysAhead returns noon UTC on the day the given number of days from
// now, safely inside the matching reminder window.
func daysAhead(days int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
}

// reminderLogEntries returns recorded (event_id, reminder_type) pairs.
func reminderLogEntries(t *testing.T) map[string]string {
	t.Helper()
	rows, err := testDB.Query(context.Background(), `
		SELECT event_id, reminder_type FROM reminder_log
	`)
	require.NoError(t, err)
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var eventID, reminderType string
		require.NoError(t, rows.Scan(&eventID, &reminderType))
		entries[eventID] = reminderType
	}
	return entries
}

// userNotificationCount returns the number of in-app notifications for
// a user.
func userNotificationCount(t *testing.T, userID string) int {
	t.Helper()
	var count int
	err := testDB.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM user_notifications WHERE user_id = $1
	`, userID).Scan(&count)
	require.NoError(t, err)
	return count
}

// seedOrder inserts an order row and returns its id.
func seedOrder(t *testing.T, status string, createdAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	_, err := testDB.Exec(context.Background(), `
		INSERT INTO orders (id, status, created_at) VALUES ($1, $2, $3)
	`, id, status, createdAt)
	require.NoError(t, err)
	return id
}

// orderStatus reads back the status of an order.
func orderStatus(t *testing.T, id string) string {
	t.Helper()
	var status string
	err := testDB.QueryRow(context.Background(), `
		SELECT status FROM orders WHERE id = $1
	`, id).Scan(&status)
	require.NoError(t, err)
	return status
}
