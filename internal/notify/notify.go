// Package notify provides the outbound notification capability: a
// fan-out dispatcher over typed channel senders (in-app, email, push)
// and the template renderer for outgoing messages.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Channel identifies a delivery channel.
type Channel string

// Delivery channels.
const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Message is a rendered notification addressed to one recipient.
// Email delivery uses Email; in-app and push delivery use UserID.
type Message struct {
	UserID  string
	Email   string
	Subject string
	Body    string
	Data    map[string]string
}

// Sender delivers a message over one channel.
type Sender interface {
	Type() Channel
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to a set of channels.
type Dispatcher struct {
	senders map[Channel]Sender
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[Channel]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{senders: senderMap}
}

// Dispatch sends msg on each of the requested channels. The email leg
// decides the overall verdict: its error is returned, while in-app and
// push failures are logged and swallowed. Reminders rely on this so
// that a flaky push endpoint cannot make a host's email reminder look
// undelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, channels []Channel) error {
	var emailErr error

	for _, ch := range channels {
		sender, ok := d.senders[ch]
		if !ok {
			slog.Warn("no sender for channel", "channel", ch)
			continue
		}

		if err := sender.Send(ctx, msg); err != nil {
			if ch == ChannelEmail {
				emailErr = fmt.Errorf("email leg: %w", err)
				continue
			}
			slog.Error("failed to send notification leg",
				"channel", ch,
				"user_id", msg.UserID,
				"error", err,
			)
		}
	}

	return emailErr
}

// Send delivers msg over a single channel, bypassing the fan-out
// verdict. The email queue processor uses this directly.
func (d *Dispatcher) Send(ctx context.Context, ch Channel, msg Message) error {
	sender, ok := d.senders[ch]
	if !ok {
		return fmt.Errorf("no sender for channel %q", ch)
	}
	return sender.Send(ctx, msg)
}
