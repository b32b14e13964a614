package logging

import (
	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// TemporalLogger adapts Logger to the Temporal SDK's key/value logger, so
// client, worker and workflow logs share one sink and one redaction policy.
type TemporalLogger struct {
	s *zap.SugaredLogger
}

var (
	_ tlog.Logger     = (*TemporalLogger)(nil)
	_ tlog.WithLogger = (*TemporalLogger)(nil)
)

// Temporal returns the Temporal adapter for l.
func (l *Logger) Temporal() *TemporalLogger {
	return &TemporalLogger{s: l.zap.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (t *TemporalLogger) Debug(msg string, keyvals ...interface{}) { t.s.Debugw(msg, keyvals...) }
func (t *TemporalLogger) Info(msg string, keyvals ...interface{})  { t.s.Infow(msg, keyvals...) }
func (t *TemporalLogger) Warn(msg string, keyvals ...interface{})  { t.s.Warnw(msg, keyvals...) }
func (t *TemporalLogger) Error(msg string, keyvals ...interface{}) { t.s.Errorw(msg, keyvals...) }

// With implements log.WithLogger.
func (t *TemporalLogger) With(keyvals ...interface{}) tlog.Logger {
	return &TemporalLogger{s: t.s.With(keyvals...)}
}
