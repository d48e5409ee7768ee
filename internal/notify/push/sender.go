// Package push provides push notification delivery via the push
// gateway's HTTP webhook.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wishlane/dispatcher/internal/notify"
)

const defaultTimeout = 10 * time.Second

// Config holds push sender configuration.
type Config struct {
	Enabled    bool
	WebhookURL string
	AuthToken  string
	Timeout    time.Duration
}

// Sender implements the push channel via a JSON webhook.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new push sender.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.WebhookURL == "" {
		return nil, fmt.Errorf("push sender: webhook URL is required when enabled")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("push sender configured", "enabled", config.Enabled)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Type returns the delivery channel.
func (s *Sender) Type() notify.Channel {
	return notify.ChannelPush
}

type webhookPayload struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Send delivers a push payload for the message recipient.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.config.Enabled {
		slog.Debug("push sender disabled, skipping", "user_id", msg.UserID)
		return nil
	}

	if msg.UserID == "" {
		return &PermanentError{Message: "recipient user id is empty"}
	}

	payload := webhookPayload{
		UserID: msg.UserID,
		Title:  msg.Subject,
		Body:   msg.Body,
		Data:   msg.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp)
}

func (s *Sender) handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		slog.Debug("push message accepted")
		return nil

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(body)),
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "invalid push gateway credentials",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("gateway error: %s", string(body)),
		}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("push error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("push error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("push error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("push error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
