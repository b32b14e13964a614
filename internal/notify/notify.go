// Package notify delivers best-effort notifications to named channels such
// as "alerts", "escalations" and "review".
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Notifier sends a message to a channel.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}

// Message is the payload published by transport notifiers.
type Message struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// ValidateChannel rejects channel names that cannot be used as a subject or
// message key.
func ValidateChannel(channel string) error {
	if channel == "" {
		return ticket.Errorf(ticket.KindNotificationError, "channel is required")
	}
	if strings.ContainsAny(channel, " \t\r\n.*>") {
		return ticket.Errorf(ticket.KindNotificationError, "invalid channel name %q", channel)
	}
	return nil
}

// deliveryError converts a transport failure into a NotificationError,
// passing context errors through untouched.
func deliveryError(ctx context.Context, transport, channel string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return ticket.Errorf(ticket.KindNotificationError, "%s delivery to %s failed: %v", transport, channel, err)
}

// Mirror delivers through Primary and copies every message to Copy, usually
// a Log notifier. The result is Primary's: a transport outage surfaces as a
// NotificationError even though the copy was written. Copy errors are
// ignored.
type Mirror struct {
	Primary Notifier
	Copy    Notifier
}

var _ Notifier = Mirror{}

// Notify implements Notifier.
func (m Mirror) Notify(ctx context.Context, channel, message string) error {
	err := m.Primary.Notify(ctx, channel, message)
	if m.Copy != nil {
		_ = m.Copy.Notify(ctx, channel, message)
	}
	return err
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, channel, message string) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, channel, message string) error {
	return f(ctx, channel, message)
}

func subjectFor(prefix, channel string) string {
	return fmt.Sprintf("%s.%s", prefix, channel)
}
