// Package reminders implements the idempotent event reminder
// scheduler.
package reminders

import "fmt"

// Window is a configured lead time at which a reminder fires. Windows
// are configuration, not persisted state; the ordered set drives one
// scheduling pass.
type Window struct {
	Days  int
	Label string
	Type  string
}

// DefaultWindows returns the standard reminder schedule.
func DefaultWindows() []Window {
	return WindowsForDays([]int{7, 3, 1})
}

// WindowsForDays builds windows from a list of day offsets, preserving
// order. The type tag keys the dedup log, so changing it for a given
// offset would re-fire reminders for events already notified.
func WindowsForDays(days []int) []Window {
	windows := make([]Window, 0, len(days))
	for _, d := range days {
		label := fmt.Sprintf("%d days", d)
		if d == 1 {
			label = "1 day"
		}
		windows = append(windows, Window{
			Days:  d,
			Label: label,
			Type:  fmt.Sprintf("%d_day", d),
		})
	}
	return windows
}
