package mailqueue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wishlane/dispatcher/internal/notify"
)

// Service provides the producer-facing queue operations used by the
// HTTP handler.
type Service struct {
	repo     Repository
	renderer *notify.Renderer
}

// NewService creates a new mailqueue service.
func NewService(repo Repository, renderer *notify.Renderer) *Service {
	return &Service{repo: repo, renderer: renderer}
}

// EnqueueInput contains data for enqueueing an outbound email.
type EnqueueInput struct {
	Recipient  string
	TemplateID string
	Variables  map[string]any
}

// Enqueue validates the template reference and inserts a pending item.
// Rejecting unknown templates here keeps permanently-unrenderable rows
// out of the queue.
func (s *Service) Enqueue(ctx context.Context, input EnqueueInput) (*Item, error) {
	if !s.renderer.Known(input.TemplateID) {
		return nil, fmt.Errorf("%w: %s", notify.ErrUnknownTemplate, input.TemplateID)
	}

	item := &Item{
		ID:         uuid.New().String(),
		Recipient:  input.Recipient,
		TemplateID: input.TemplateID,
		Variables:  input.Variables,
	}

	if err := s.repo.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	return item, nil
}

// QueueStats returns queue size by status.
func (s *Service) QueueStats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
