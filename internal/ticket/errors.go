package ticket

import (
	"errors"
	"fmt"
)

// Kind classifies an OperationError.
type Kind string

const (
	// KindIdempotencyMismatch means an idempotency key was reused for a
	// logically different request. Always fatal.
	KindIdempotencyMismatch Kind = "IdempotencyMismatch"
	// KindUpdateError means the system of record rejected a status update.
	KindUpdateError Kind = "UpdateError"
	// KindNotificationError means a best-effort notification was not delivered.
	KindNotificationError Kind = "NotificationError"
	// KindFetchError means an external read (search, classification, generation) failed.
	KindFetchError Kind = "FetchError"
	// KindNotFound means the referenced entity does not exist.
	KindNotFound Kind = "NotFound"
	// KindInvalidInput means the caller supplied a malformed request.
	KindInvalidInput Kind = "InvalidInput"
)

// OperationError is the tagged failure value returned by every activity and
// by the orchestrator.
type OperationError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches another *OperationError of the same kind, so
// errors.Is(err, &OperationError{Kind: KindUpdateError}) works.
func (e *OperationError) Is(target error) bool {
	var t *OperationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Errorf creates an OperationError with a formatted message.
func Errorf(kind Kind, format string, args ...any) *OperationError {
	return &OperationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsOperationError extracts an *OperationError from err's chain.
func AsOperationError(err error) (*OperationError, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" when err is not an OperationError.
func KindOf(err error) Kind {
	if opErr, ok := AsOperationError(err); ok {
		return opErr.Kind
	}
	return ""
}

// IsKind reports whether err carries an OperationError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
