// Package logging provides structured zap logging for ticketd.
//
// Loggers take a context on every call and add correlation fields from it:
// trace_id and span_id from the active OpenTelemetry span, then ticket.id,
// workflow.id and request.id when set.
//
//	ctx = logging.WithTicketID(ctx, t.ID)
//	logger.Info(ctx, "ticket processed", zap.String("path", string(outcome.Path)))
//
// Output goes to stdout (JSON or console) and optionally to an OTEL log
// provider through the otelzap bridge. The stdout encoder redacts
// credential fields and requester contact details by name, and any string
// value that looks like a bearer token, API key or email address.
//
// Entries below Error are sampled per second; errors never are.
//
// Temporal returns an adapter for the Temporal SDK's key/value logger.
// NewTestLogger records entries for assertions in tests.
package logging
