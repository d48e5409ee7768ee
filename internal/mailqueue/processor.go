package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wishlane/dispatcher/internal/notify"
)

// Config contains processor configuration.
type Config struct {
	BatchSize   int
	MaxAttempts int
	StuckAfter  time.Duration
}

// DefaultConfig returns default processor configuration. BatchSize
// bounds per-cycle work against an unbounded backlog; MaxAttempts caps
// total load on the SMTP transport per item.
func DefaultConfig() Config {
	return Config{
		BatchSize:   50,
		MaxAttempts: 3,
		StuckAfter:  15 * time.Minute,
	}
}

// Summary reports one processing cycle. Failed counts delivery
// failures in the cycle, including items released back to pending.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Processor drains a bounded batch of pending queue items per cycle.
type Processor struct {
	config     Config
	repo       Repository
	renderer   *notify.Renderer
	dispatcher *notify.Dispatcher
}

// NewProcessor creates a queue processor.
func NewProcessor(config Config, repo Repository, renderer *notify.Renderer, dispatcher *notify.Dispatcher) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.StuckAfter <= 0 {
		config.StuckAfter = DefaultConfig().StuckAfter
	}
	return &Processor{
		config:     config,
		repo:       repo,
		renderer:   renderer,
		dispatcher: dispatcher,
	}
}

// Process runs one queue cycle: recover stuck claims, select a bounded
// batch of pending items oldest-first, and attempt each one. Per-item
// errors are attributed to that item only and never abort the batch.
func (p *Processor) Process(ctx context.Context) (Summary, error) {
	var summary Summary

	requeued, failedStuck, err := p.repo.RecoverStuck(ctx, p.config.StuckAfter, p.config.MaxAttempts)
	if err != nil {
		slog.Error("failed to recover stuck items", "error", err)
	} else if requeued > 0 || failedStuck > 0 {
		slog.Warn("recovered stuck queue items", "requeued", requeued, "failed", failedStuck)
	}

	items, err := p.repo.SelectPending(ctx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		return summary, fmt.Errorf("select pending items: %w", err)
	}

	if len(items) == 0 {
		return summary, nil
	}

	slog.Debug("processing email queue batch", "count", len(items))
	recordQueueFetched(len(items))

	for _, item := range items {
		p.processItem(ctx, item, &summary)
	}

	return summary, nil
}

func (p *Processor) processItem(ctx context.Context, item *Item, summary *Summary) {
	start := time.Now()

	// Claim before delivering: a crash mid-send leaves the attempt
	// counted against the retry budget.
	attempts, err := p.repo.Claim(ctx, item.ID)
	if errors.Is(err, ErrNotClaimable) {
		slog.Debug("queue item claimed elsewhere, skipping", "item_id", item.ID)
		return
	}
	if err != nil {
		slog.Error("failed to claim queue item", "item_id", item.ID, "error", err)
		return
	}

	summary.Processed++

	subject, body, err := p.renderer.Render(item.TemplateID, item.Variables)
	if err != nil {
		// Rendering fails identically on every attempt, no point retrying.
		slog.Error("failed to render queue item", "item_id", item.ID, "template", item.TemplateID, "error", err)
		p.markFailed(ctx, item.ID, err)
		summary.Failed++
		recordEmailProcessed("failed")
		return
	}

	msg := notify.Message{
		Email:   item.Recipient,
		Subject: subject,
		Body:    body,
	}

	err = p.dispatcher.Send(ctx, notify.ChannelEmail, msg)
	duration := time.Since(start)

	if err != nil {
		p.handleSendError(ctx, item, attempts, err)
		summary.Failed++
		return
	}

	if err := p.repo.MarkSent(ctx, item.ID); err != nil {
		slog.Error("failed to mark as sent", "item_id", item.ID, "error", err)
	}

	summary.Sent++
	recordEmailProcessed("sent")
	recordSendDuration(duration)

	slog.Debug("queue email sent",
		"item_id", item.ID,
		"template", item.TemplateID,
		"attempt", attempts,
		"duration", duration,
	)
}

func (p *Processor) handleSendError(ctx context.Context, item *Item, attempts int, err error) {
	slog.Warn("queue send failed",
		"item_id", item.ID,
		"attempt", attempts,
		"max_attempts", p.config.MaxAttempts,
		"error", err,
	)

	if !notify.IsRetryable(err) {
		p.markFailed(ctx, item.ID, err)
		recordEmailProcessed("failed")
		return
	}

	if attempts >= p.config.MaxAttempts {
		p.markFailed(ctx, item.ID, fmt.Errorf("max attempts exceeded: %w", err))
		recordEmailProcessed("failed")
		return
	}

	// Retry budget left: back to pending for the next cycle.
	if relErr := p.repo.Release(ctx, item.ID, err); relErr != nil {
		slog.Error("failed to release item for retry", "item_id", item.ID, "error", relErr)
	}
	recordEmailProcessed("retry")
}

func (p *Processor) markFailed(ctx context.Context, id string, cause error) {
	if err := p.repo.MarkFailed(ctx, id, cause); err != nil {
		slog.Error("failed to mark as failed", "item_id", id, "error", err)
	}
}
