package mailqueue

import "time"

// Status represents the status of a queue item.
type Status string

// Queue item statuses. Transitions are pending -> processing ->
// {sent, pending, failed}; attempts only ever increase.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Item is one unit of outbound email work. Rows are created by
// upstream producers (checkout, registry actions) and mutated only by
// the processor; retention of sent/failed rows is a separate concern.
type Item struct {
	ID                  string
	Recipient           string
	TemplateID          string
	Variables           map[string]any
	Status              Status
	Attempts            int
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProcessingStartedAt *time.Time
	SentAt              *time.Time
}

// Stats holds queue size by status.
type Stats struct {
	Pending    int64
	Processing int64
	Sent       int64
	Failed     int64
}
