package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes notifications to a logger. It never fails for a valid channel.
type Log struct {
	logger *zap.Logger
}

var _ Notifier = (*Log)(nil)

// NewLog creates a Log notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, channel, message string) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	l.logger.Info("notification",
		zap.String("channel", channel),
		zap.String("message", message),
	)
	return nil
}
