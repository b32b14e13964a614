package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// ComputeFunc performs the real effect on a cache miss.
type ComputeFunc func(ctx context.Context) (json.RawMessage, error)

// Store is the idempotency contract consumed by the activity layer.
type Store interface {
	RecordOrFetch(ctx context.Context, activity, key string, fp Fingerprint, compute ComputeFunc) (json.RawMessage, error)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for mismatch and cancellation events.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// Gate implements Store over a Backend with per-key mutual exclusion.
type Gate struct {
	backend Backend
	locks   *keyedLocks
	logger  *zap.Logger
	now     func() time.Time
}

var _ Store = (*Gate)(nil)

// NewGate wraps backend.
func NewGate(backend Backend, opts ...Option) (*Gate, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	g := &Gate{
		backend: backend,
		locks:   newKeyedLocks(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewMemoryGate returns a Gate over a fresh MemoryBackend.
func NewMemoryGate(opts ...Option) *Gate {
	g, _ := NewGate(NewMemoryBackend(), opts...)
	return g
}

// Close releases the backend.
func (g *Gate) Close() error {
	return g.backend.Close()
}

// RecordOrFetch implements Store.
func (g *Gate) RecordOrFetch(ctx context.Context, activity, key string, fp Fingerprint, compute ComputeFunc) (json.RawMessage, error) {
	if activity == "" || key == "" {
		return nil, ticket.Errorf(ticket.KindInvalidInput, "activity and idempotency key are required")
	}

	unlock, err := g.locks.acquire(ctx, activity+"\x00"+key)
	if err != nil {
		LookupsTotal.WithLabelValues(activity, resultCancelled).Inc()
		return nil, fmt.Errorf("waiting for key %s/%s: %w", activity, key, err)
	}
	defer unlock()

	rec, err := g.backend.Get(ctx, activity, key)
	switch {
	case err == nil:
		return g.replay(activity, key, fp, rec)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("loading record %s/%s: %w", activity, key, err)
	}

	LookupsTotal.WithLabelValues(activity, resultMiss).Inc()
	start := time.Now()
	result, computeErr := compute(ctx)
	ComputeDuration.WithLabelValues(activity).Observe(time.Since(start).Seconds())

	if ctxErr := ctx.Err(); ctxErr != nil {
		LookupsTotal.WithLabelValues(activity, resultCancelled).Inc()
		g.logger.Debug("compute cancelled, nothing recorded",
			zap.String("activity", activity),
			zap.String("key", key),
		)
		if computeErr != nil {
			return nil, computeErr
		}
		return nil, ctxErr
	}

	rec = &Record{
		Activity:    activity,
		Key:         key,
		Fingerprint: fp,
		CreatedAt:   g.now().UTC(),
	}
	if computeErr != nil {
		opErr, ok := ticket.AsOperationError(computeErr)
		if !ok {
			// Infrastructure failures are not outcomes of the request.
			return nil, computeErr
		}
		rec.Err = &ticket.OperationError{Kind: opErr.Kind, Message: opErr.Message}
	} else {
		rec.Result = result
	}

	stored, inserted, err := g.backend.PutIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("storing record %s/%s: %w", activity, key, err)
	}
	if !inserted {
		// Another process recorded this key between our Get and Put.
		return g.replay(activity, key, fp, stored)
	}
	return rec.Outcome()
}

func (g *Gate) replay(activity, key string, fp Fingerprint, rec *Record) (json.RawMessage, error) {
	if rec.Fingerprint != fp {
		LookupsTotal.WithLabelValues(activity, resultMismatch).Inc()
		g.logger.Warn("idempotency key reused for a different request",
			zap.String("activity", activity),
			zap.String("key", key),
			zap.String("stored_fingerprint", string(rec.Fingerprint)),
			zap.String("fingerprint", string(fp)),
		)
		return nil, ticket.Errorf(ticket.KindIdempotencyMismatch,
			"key %q of activity %s was already used for a different request", key, activity)
	}
	LookupsTotal.WithLabelValues(activity, resultHit).Inc()
	return rec.Outcome()
}

// Do runs compute through store under (activity, key), fingerprinting input
// and JSON-encoding the typed result.
func Do[T any](ctx context.Context, store Store, activity, key string, input any, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	fp, err := FingerprintOf(activity, input)
	if err != nil {
		return zero, err
	}

	raw, err := store.RecordOrFetch(ctx, activity, key, fp, func(ctx context.Context) (json.RawMessage, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s result: %w", activity, err)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decoding recorded %s result: %w", activity, err)
	}
	return out, nil
}
