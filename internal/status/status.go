// Package status is the system of record for ticket lifecycle state.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Updater changes a ticket's status.
type Updater interface {
	UpdateStatus(ctx context.Context, ticketID string, status ticket.Status) error
}

// Reader looks up a ticket's current status.
type Reader interface {
	Current(ctx context.Context, ticketID string) (ticket.Status, error)
}

// Transition is one recorded status change.
type Transition struct {
	From ticket.Status `json:"from"`
	To   ticket.Status `json:"to"`
	At   time.Time     `json:"at"`
}

// Option configures a Memory store.
type Option func(*Memory)

// WithStrict makes updates to unregistered tickets fail with NotFound.
// Without it the first update registers the ticket.
func WithStrict() Option {
	return func(m *Memory) { m.strict = true }
}

// WithClock overrides the clock used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// Memory keeps ticket status in process memory.
type Memory struct {
	mu      sync.RWMutex
	current map[string]ticket.Status
	history map[string][]Transition
	strict  bool
	now     func() time.Time
}

var (
	_ Updater = (*Memory)(nil)
	_ Reader  = (*Memory)(nil)
)

// NewMemory creates an empty store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		current: make(map[string]ticket.Status),
		history: make(map[string][]Transition),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register records a ticket as open. Registering an existing ticket is a
// no-op.
func (m *Memory) Register(ticketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.current[ticketID]; !ok {
		m.current[ticketID] = ticket.StatusOpen
	}
}

// UpdateStatus implements Updater.
func (m *Memory) UpdateStatus(ctx context.Context, ticketID string, status ticket.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return ticket.Errorf(ticket.KindUpdateError, "unknown status %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.current[ticketID]
	if !ok {
		if m.strict {
			return ticket.Errorf(ticket.KindNotFound, "ticket %s is not registered", ticketID)
		}
		from = ticket.StatusOpen
	}
	if from == ticket.StatusClosed && status != ticket.StatusClosed {
		return ticket.Errorf(ticket.KindUpdateError, "ticket %s is closed", ticketID)
	}

	m.current[ticketID] = status
	m.history[ticketID] = append(m.history[ticketID], Transition{From: from, To: status, At: m.now().UTC()})
	return nil
}

// Current implements Reader.
func (m *Memory) Current(ctx context.Context, ticketID string) (ticket.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.current[ticketID]
	if !ok {
		return "", ticket.Errorf(ticket.KindNotFound, "ticket %s not found", ticketID)
	}
	return s, nil
}

// History returns the transitions recorded for a ticket, oldest first.
func (m *Memory) History(ticketID string) []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[ticketID]
	out := make([]Transition, len(h))
	copy(out, h)
	return out
}
