package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is prepended to the channel to form the subject:
// tickets.notify.<channel>.
const DefaultSubjectPrefix = "tickets.notify"

// flushTimeout bounds the flush when ctx carries no deadline; nats.go
// refuses to flush without one.
const flushTimeout = 5 * time.Second

// NATS publishes notifications as JSON on a NATS subject per channel.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

var _ Notifier = (*NATS)(nil)

// NewNATS wraps an existing connection. The caller owns the connection.
func NewNATS(conn *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

// Notify implements Notifier. It flushes after publishing so a message the
// server never received is reported as a failure.
func (n *NATS) Notify(ctx context.Context, channel, message string) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	data, err := json.Marshal(Message{Channel: channel, Message: message})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	// A reconnecting connection would buffer the message and block the
	// flush; report the outage instead.
	if !n.conn.IsConnected() {
		return deliveryError(ctx, "nats", channel, fmt.Errorf("connection %s", n.conn.Status()))
	}

	subject := subjectFor(n.prefix, channel)
	if err := n.conn.Publish(subject, data); err != nil {
		return deliveryError(ctx, "nats", channel, err)
	}
	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(flushCtx); err != nil {
		return deliveryError(ctx, "nats", channel, err)
	}
	return nil
}

// Subject returns the subject used for channel.
func (n *NATS) Subject(channel string) string {
	return subjectFor(n.prefix, channel)
}
