package workflows

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// operationKinds are the ApplicationError types that carry an
// OperationError across the Temporal boundary.
var operationKinds = []string{
	string(ticket.KindIdempotencyMismatch),
	string(ticket.KindUpdateError),
	string(ticket.KindNotificationError),
	string(ticket.KindFetchError),
	string(ticket.KindNotFound),
	string(ticket.KindInvalidInput),
}

// EncodeError converts an OperationError into a non-retryable
// ApplicationError whose type is the error kind. Recorded failures replay
// identically, so retrying them would only burn attempts. Other errors are
// returned unchanged and stay retryable: nothing was recorded for them.
func EncodeError(err error) error {
	if err == nil {
		return nil
	}
	if opErr, ok := ticket.AsOperationError(err); ok {
		return temporal.NewNonRetryableApplicationError(opErr.Message, string(opErr.Kind), nil)
	}
	return err
}

// DecodeError recovers the OperationError carried by an activity or
// workflow error. Errors that do not carry one are returned unchanged.
func DecodeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	for _, kind := range operationKinds {
		if appErr.Type() == kind {
			return &ticket.OperationError{Kind: ticket.Kind(kind), Message: appErr.Message()}
		}
	}
	return err
}
