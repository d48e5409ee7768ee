package mailqueue

import "errors"

// Repository errors.
var (
	// ErrNotClaimable is returned when a conditional claim finds the
	// item no longer pending (already claimed by a concurrent run, or
	// already terminal).
	ErrNotClaimable = errors.New("queue item is not claimable")

	// ErrItemNotFound is returned when an item id does not exist.
	ErrItemNotFound = errors.New("queue item not found")
)
