// Package dispatch contains the unified scheduled dispatcher: one
// externally-triggered entry point that drains the email queue, emits
// event reminders, and sweeps stale orders.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wishlane/dispatcher/internal/mailqueue"
	"github.com/wishlane/dispatcher/internal/orders"
	"github.com/wishlane/dispatcher/internal/reminders"
)

// Config contains coordinator configuration.
type Config struct {
	// TaskTimeout bounds each of the three tasks so a slow transport
	// cannot extend an invocation without limit.
	TaskTimeout time.Duration
}

// DefaultConfig returns default coordinator configuration.
func DefaultConfig() Config {
	return Config{TaskTimeout: 2 * time.Minute}
}

// EmailResult is the email queue task summary.
type EmailResult struct {
	mailqueue.Summary
	Error string `json:"error,omitempty"`
}

// ReminderResult is the reminder task summary.
type ReminderResult struct {
	reminders.Summary
	Error string `json:"error,omitempty"`
}

// OrderResult is the expiry sweep task summary.
type OrderResult struct {
	orders.Summary
	Error string `json:"error,omitempty"`
}

// Result aggregates one dispatch run.
type Result struct {
	Success       bool           `json:"success"`
	Emails        EmailResult    `json:"emails"`
	Reminders     ReminderResult `json:"reminders"`
	ExpiredOrders OrderResult    `json:"expiredOrders"`
}

// Coordinator runs the three dispatch tasks in a fixed order, isolating
// failures so one task cannot prevent the others from running. It
// holds no state of its own; all side effects belong to the tasks.
type Coordinator struct {
	config    Config
	processor *mailqueue.Processor
	scheduler *reminders.Scheduler
	sweeper   *orders.Sweeper

	now func() time.Time
}

// NewCoordinator creates a dispatch coordinator.
func NewCoordinator(config Config, processor *mailqueue.Processor, scheduler *reminders.Scheduler, sweeper *orders.Sweeper) *Coordinator {
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultConfig().TaskTimeout
	}
	return &Coordinator{
		config:    config,
		processor: processor,
		scheduler: scheduler,
		sweeper:   sweeper,
		now:       time.Now,
	}
}

// Run executes one dispatch cycle: email queue, then reminders, then
// order expiry. Each task gets its own deadline; an error or panic in
// one is recorded in its partial result and the remaining tasks still
// run.
func (c *Coordinator) Run(ctx context.Context) *Result {
	start := c.now().UTC()
	result := &Result{Success: true}

	result.Emails.Summary, result.Emails.Error = runTask(ctx, c.config.TaskTimeout, "emails",
		func(taskCtx context.Context) (mailqueue.Summary, error) {
			return c.processor.Process(taskCtx)
		})

	result.Reminders.Summary, result.Reminders.Error = runTask(ctx, c.config.TaskTimeout, "reminders",
		func(taskCtx context.Context) (reminders.Summary, error) {
			return c.scheduler.Run(taskCtx, start)
		})

	result.ExpiredOrders.Summary, result.ExpiredOrders.Error = runTask(ctx, c.config.TaskTimeout, "expiry",
		func(taskCtx context.Context) (orders.Summary, error) {
			return c.sweeper.Run(taskCtx, start)
		})

	if result.Emails.Error != "" || result.Reminders.Error != "" || result.ExpiredOrders.Error != "" {
		result.Success = false
	}

	outcome := "success"
	if !result.Success {
		outcome = "partial_failure"
	}
	recordRun(outcome, c.now().UTC().Sub(start))

	slog.Info("dispatch run complete",
		"success", result.Success,
		"emails_processed", result.Emails.Processed,
		"emails_sent", result.Emails.Sent,
		"reminders_created", result.Reminders.Created,
		"orders_expired", result.ExpiredOrders.Expired,
		"duration", c.now().UTC().Sub(start),
	)

	return result
}

// runTask executes one task with its own deadline, converting errors
// and panics into the task's summary error string.
func runTask[T any](ctx context.Context, timeout time.Duration, name string, fn func(context.Context) (T, error)) (summary T, errStr string) {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	taskStart := time.Now()
	defer func() {
		recordTaskDuration(name, time.Since(taskStart))
		if r := recover(); r != nil {
			slog.Error("dispatch task panicked", "task", name, "panic", r)
			errStr = fmt.Sprintf("panic: %v", r)
		}
	}()

	summary, err := fn(taskCtx)
	if err != nil {
		slog.Error("dispatch task failed", "task", name, "error", err)
		errStr = err.Error()
	}
	return summary, errStr
}
