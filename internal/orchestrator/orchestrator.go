// Package orchestrator drives one ticket through classification, routing
// and the planned activities.
//
// The drive loop is written against Runner, Clock and Logger so it can run
// in-process or inside a durable workflow, where those are backed by the
// workflow runtime.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/activities"
	"github.com/fyrsmithlabs/ticketd/internal/respond"
	"github.com/fyrsmithlabs/ticketd/internal/routing"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Runner executes activities. Implementations bind whatever context they
// need; the drive loop itself never blocks on anything else.
type Runner interface {
	Classify(in activities.ClassifyInput) (ticket.Classification, error)
	SearchKnowledge(in activities.SearchInput) (ticket.SearchResult, error)
	GenerateText(in activities.GenerateInput) (string, error)
	UpdateStatus(in activities.UpdateStatusInput) error
	Notify(in activities.NotifyInput) error
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the key-value logger used by the drive loop. Temporal's
// log.Logger satisfies it.
type Logger interface {
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
}

// ZapLogger adapts a zap logger to Logger.
func ZapLogger(l *zap.Logger) Logger {
	return zapLogger{s: l.Sugar()}
}

type zapLogger struct{ s *zap.SugaredLogger }

func (z zapLogger) Info(msg string, kv ...interface{}) { z.s.Infow(msg, kv...) }
func (z zapLogger) Warn(msg string, kv ...interface{}) { z.s.Warnw(msg, kv...) }

// Key returns the idempotency key of a step for a ticket.
func Key(suffix, ticketID string) string {
	return suffix + ":" + ticketID
}

// ClassifyKeySuffix is the key suffix of the classification step.
const ClassifyKeySuffix = "classify"

// Drive processes t with r. The returned outcome depends only on t, the
// activity results and the clock.
func Drive(r Runner, clock Clock, log Logger, t ticket.Ticket) (*ticket.Outcome, error) {
	start := clock.Now()

	if err := t.Validate(); err != nil {
		return nil, err
	}

	var notes []string
	c, err := r.Classify(activities.ClassifyInput{Key: Key(ClassifyKeySuffix, t.ID), Text: t.Text})
	if err != nil {
		if _, recorded := ticket.AsOperationError(err); recorded || fatal(err) {
			return nil, fmt.Errorf("classify: %w", err)
		}
		log.Warn("classification unavailable, using default", "ticket_id", t.ID, "error", err.Error())
		c = ticket.DefaultClassification()
		notes = append(notes, NoteClassifyFallback)
	}

	plan := routing.Route(c)
	log.Info("ticket routed",
		"ticket_id", t.ID,
		"path", string(plan.Path),
		"intent", c.Intent,
		"urgency", string(c.Urgency),
		"sentiment", string(c.Sentiment),
	)

	ex := &execution{runner: r, log: log, ticket: t, class: c, notes: notes}
	if err := ex.run(plan.Steps); err != nil {
		return nil, err
	}
	if plan.Pending {
		done := len(plan.Steps)
		plan = routing.Resume(plan, ex.lastSearch)
		log.Info("plan resumed", "ticket_id", t.ID, "decision", plan.Decision)
		if err := ex.run(plan.Steps[done:]); err != nil {
			return nil, err
		}
	}

	response := plan.Response
	if ex.generated {
		response = ex.response
	}

	return &ticket.Outcome{
		TicketID:       t.ID,
		FinalStatus:    plan.FinalStatus,
		ResponseText:   response,
		Path:           string(plan.Path),
		RoutingVersion: routing.Version,
		Elapsed:        clock.Now().Sub(start),
		Notes:          ex.notes,
	}, nil
}

type execution struct {
	runner Runner
	log    Logger
	ticket ticket.Ticket
	class  ticket.Classification

	lastSearch ticket.SearchResult
	response   string
	generated  bool
	notes      []string
}

func (ex *execution) run(steps []routing.Step) error {
	for _, step := range steps {
		if err := ex.step(step); err != nil {
			return fmt.Errorf("%s: %w", step.Key, err)
		}
	}
	return nil
}

// Notes recorded on an Outcome when a step fell back or was skipped.
const (
	NoteClassifyFallback = "classification unavailable, used default classification"
	NoteSearchDegraded   = "knowledge search unavailable, continued without matches"
	NoteGenerateFallback = "reply generation unavailable, used fallback acknowledgment"
	notifyNotePrefix     = "notify "
)

// IsNotifyNote reports whether an Outcome note records a failed notification.
func IsNotifyNote(note string) bool {
	return strings.HasPrefix(note, notifyNotePrefix)
}

// fatal reports errors no step may absorb: a key reused for a different
// request, or the caller giving up.
func fatal(err error) bool {
	return ticket.IsKind(err, ticket.KindIdempotencyMismatch) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// step runs one planned step. Activities already substitute defaults for
// provider failures; errors reaching here come from the runner itself, for
// example a durable activity that exhausted its retries, and get the same
// treatment.
func (ex *execution) step(step routing.Step) error {
	key := Key(step.Key, ex.ticket.ID)

	switch step.Kind {
	case routing.StepSearch:
		res, err := ex.runner.SearchKnowledge(activities.SearchInput{Key: key, Query: step.Query, Limit: step.Limit})
		if err != nil {
			if fatal(err) {
				return err
			}
			ex.absorbed("knowledge search", err)
			res = ticket.SearchResult{Matches: []ticket.KnowledgeMatch{}, Degraded: true}
		}
		ex.lastSearch = res
		if res.Degraded {
			ex.notes = append(ex.notes, NoteSearchDegraded)
		}

	case routing.StepGenerate:
		text, err := ex.runner.GenerateText(activities.GenerateInput{
			Key:            key,
			Context:        routing.GenerationContext(ex.lastSearch, ex.ticket.Text),
			Classification: ex.class,
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			ex.absorbed("reply generation", err)
			text = respond.FallbackAcknowledgment
			ex.notes = append(ex.notes, NoteGenerateFallback)
		}
		ex.response = text
		ex.generated = true

	case routing.StepUpdateStatus:
		return ex.runner.UpdateStatus(activities.UpdateStatusInput{Key: key, TicketID: ex.ticket.ID, Status: step.Status})

	case routing.StepNotify:
		err := ex.runner.Notify(activities.NotifyInput{
			Key:     key,
			Channel: step.Channel,
			Message: fmt.Sprintf("ticket %s: %s", ex.ticket.ID, step.Reason),
		})
		if err == nil {
			return nil
		}
		if fatal(err) {
			return err
		}
		ex.log.Warn("notification failed",
			"ticket_id", ex.ticket.ID,
			"channel", step.Channel,
			"error", err.Error(),
		)
		ex.notes = append(ex.notes, fmt.Sprintf("%s%s failed: %v", notifyNotePrefix, step.Channel, err))

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
	return nil
}

func (ex *execution) absorbed(what string, err error) {
	ex.log.Warn(what+" failed, using fallback",
		"ticket_id", ex.ticket.ID,
		"error", err.Error(),
	)
}

// Orchestrator runs tickets in-process against Activities.
type Orchestrator struct {
	acts   *activities.Activities
	clock  Clock
	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator.
func New(acts *activities.Activities, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		acts:   acts,
		clock:  ClockFunc(time.Now),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTicket drives t to an outcome.
func (o *Orchestrator) ProcessTicket(ctx context.Context, t ticket.Ticket) (*ticket.Outcome, error) {
	logger := o.logger.With(zap.String("ticket.id", t.ID))
	out, err := Drive(DirectRunner{Ctx: ctx, Activities: o.acts}, o.clock, ZapLogger(logger), t)
	if err != nil {
		logger.Warn("ticket processing failed", zap.Error(err))
		return nil, err
	}
	logger.Info("ticket processed",
		zap.String("status", string(out.FinalStatus)),
		zap.String("path", out.Path),
		zap.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// Process is the two-argument entry point: it processes a ticket known only
// by id and text.
func (o *Orchestrator) Process(ctx context.Context, ticketID, ticketText string) (*ticket.Outcome, error) {
	return o.ProcessTicket(ctx, ticket.Ticket{ID: ticketID, Text: ticketText})
}

// DirectRunner calls Activities in-process with a fixed context.
type DirectRunner struct {
	Ctx        context.Context
	Activities *activities.Activities
}

var _ Runner = DirectRunner{}

func (d DirectRunner) Classify(in activities.ClassifyInput) (ticket.Classification, error) {
	return d.Activities.Classify(d.Ctx, in)
}

func (d DirectRunner) SearchKnowledge(in activities.SearchInput) (ticket.SearchResult, error) {
	return d.Activities.SearchKnowledge(d.Ctx, in)
}

func (d DirectRunner) GenerateText(in activities.GenerateInput) (string, error) {
	return d.Activities.GenerateText(d.Ctx, in)
}

func (d DirectRunner) UpdateStatus(in activities.UpdateStatusInput) error {
	return d.Activities.UpdateStatus(d.Ctx, in)
}

func (d DirectRunner) Notify(in activities.NotifyInput) error {
	return d.Activities.Notify(d.Ctx, in)
}
