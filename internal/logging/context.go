package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation fields from ctx: the active span,
// ticket, workflow and request ids.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := TicketIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("ticket.id", id))
	}
	if id := WorkflowIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("workflow.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

type (
	ticketCtxKey   struct{}
	workflowCtxKey struct{}
	requestCtxKey  struct{}
	loggerCtxKey   struct{}
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateID checks a correlation id taken from outside the process, such
// as an X-Request-ID header.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("id contains invalid UTF-8")
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("id exceeds max length %d", maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("id contains invalid characters")
	}
	return nil
}

// WithTicketID adds the ticket id to ctx. Ids longer than 128 bytes are
// truncated; empty ids leave ctx unchanged.
func WithTicketID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return context.WithValue(ctx, ticketCtxKey{}, id)
}

// TicketIDFromContext returns the ticket id, or "".
func TicketIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ticketCtxKey{}).(string)
	return id
}

// WithWorkflowID adds a durable execution id to ctx.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowCtxKey{}, id)
}

// WorkflowIDFromContext returns the workflow id, or "".
func WorkflowIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workflowCtxKey{}).(string)
	return id
}

// WithRequestID adds the request id to ctx.
// Panics if id fails ValidateID; callers validate external input first.
func WithRequestID(ctx context.Context, id string) context.Context {
	if err := ValidateID(id); err != nil {
		panic(fmt.Sprintf("logging: request id: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the stored logger, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
