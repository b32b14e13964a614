package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// ErrNotFound is returned by Backend.Get when no record exists for a key.
var ErrNotFound = errors.New("idempotency record not found")

// Record is the stored outcome of one idempotent call.
type Record struct {
	Activity    string                 `json:"activity"`
	Key         string                 `json:"key"`
	Fingerprint Fingerprint            `json:"fingerprint"`
	Result      json.RawMessage        `json:"result,omitempty"`
	Err         *ticket.OperationError `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Outcome returns the recorded result or the recorded failure.
func (r *Record) Outcome() (json.RawMessage, error) {
	if r.Err != nil {
		return nil, &ticket.OperationError{Kind: r.Err.Kind, Message: r.Err.Message}
	}
	return r.Result, nil
}

// Backend persists records. Implementations must make PutIfAbsent atomic per
// (activity, key): exactly one concurrent writer inserts, the others get the
// winning record back with inserted=false.
type Backend interface {
	Get(ctx context.Context, activity, key string) (*Record, error)
	PutIfAbsent(ctx context.Context, rec *Record) (stored *Record, inserted bool, err error)
	Close() error
}
