package activities

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/classify"
	"github.com/fyrsmithlabs/ticketd/internal/idempotency"
	"github.com/fyrsmithlabs/ticketd/internal/knowledge"
	"github.com/fyrsmithlabs/ticketd/internal/notify"
	"github.com/fyrsmithlabs/ticketd/internal/respond"
	"github.com/fyrsmithlabs/ticketd/internal/status"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

var tracer = otel.Tracer(instrumentationName)

// Providers are the effect providers behind the activities.
type Providers struct {
	Classifier classify.Classifier
	Searcher   knowledge.Searcher
	Generator  respond.Generator
	Status     status.Updater
	Notifier   notify.Notifier
}

func (p Providers) validate() error {
	var missing []string
	if p.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if p.Searcher == nil {
		missing = append(missing, "searcher")
	}
	if p.Generator == nil {
		missing = append(missing, "generator")
	}
	if p.Status == nil {
		missing = append(missing, "status")
	}
	if p.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing providers: %v", missing)
	}
	return nil
}

// Activities implements the five idempotent operations.
type Activities struct {
	store     idempotency.Store
	providers Providers
	logger    *zap.Logger
}

// Option configures Activities.
type Option func(*Activities)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Activities) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates Activities over store and providers.
func New(store idempotency.Store, providers Providers, opts ...Option) (*Activities, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store is required")
	}
	if err := providers.validate(); err != nil {
		return nil, err
	}
	a := &Activities{
		store:     store,
		providers: providers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Classify classifies ticket text. A failing classifier yields
// ticket.DefaultClassification().
func (a *Activities) Classify(ctx context.Context, in ClassifyInput) (ticket.Classification, error) {
	ctx, finish := a.begin(ctx, NameClassify, in.Key)
	out, err := idempotency.Do(ctx, a.store, NameClassify, in.Key, in.params(),
		func(ctx context.Context) (ticket.Classification, error) {
			c, err := a.providers.Classifier.Classify(ctx, in.Text)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ticket.Classification{}, ctxErr
				}
				a.fallback(ctx, NameClassify, in.Key, err)
				return ticket.DefaultClassification(), nil
			}
			return c, nil
		})
	finish(err)
	return out, err
}

// SearchKnowledge searches the knowledge base. Matches below MinSimilarity
// are dropped and the rest are ordered by descending similarity, ties in
// provider order, and cut to Limit. A failing provider yields an empty,
// degraded result.
func (a *Activities) SearchKnowledge(ctx context.Context, in SearchInput) (ticket.SearchResult, error) {
	ctx, finish := a.begin(ctx, NameSearchKnowledge, in.Key)
	out, err := idempotency.Do(ctx, a.store, NameSearchKnowledge, in.Key, in.params(),
		func(ctx context.Context) (ticket.SearchResult, error) {
			matches, err := a.providers.Searcher.Search(ctx, in.Query, in.Limit)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ticket.SearchResult{}, ctxErr
				}
				a.fallback(ctx, NameSearchKnowledge, in.Key, err)
				return ticket.SearchResult{Matches: []ticket.KnowledgeMatch{}, Degraded: true}, nil
			}
			return ticket.SearchResult{Matches: rankMatches(matches, in.Limit)}, nil
		})
	finish(err)
	return out, err
}

// GenerateText drafts a reply. A failing generator yields
// respond.FallbackAcknowledgment.
func (a *Activities) GenerateText(ctx context.Context, in GenerateInput) (string, error) {
	ctx, finish := a.begin(ctx, NameGenerateText, in.Key)
	out, err := idempotency.Do(ctx, a.store, NameGenerateText, in.Key, in.params(),
		func(ctx context.Context) (string, error) {
			text, err := a.providers.Generator.Generate(ctx, in.Context, in.Classification)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				a.fallback(ctx, NameGenerateText, in.Key, err)
				return respond.FallbackAcknowledgment, nil
			}
			return text, nil
		})
	finish(err)
	return out, err
}

// UpdateStatus writes the ticket status to the system of record. Failures
// are recorded and propagate.
func (a *Activities) UpdateStatus(ctx context.Context, in UpdateStatusInput) error {
	ctx, finish := a.begin(ctx, NameUpdateStatus, in.Key)
	_, err := idempotency.Do(ctx, a.store, NameUpdateStatus, in.Key, in.params(),
		func(ctx context.Context) (struct{}, error) {
			err := a.providers.Status.UpdateStatus(ctx, in.TicketID, in.Status)
			return struct{}{}, classifyFailure(ctx, err, ticket.KindUpdateError)
		})
	finish(err)
	return err
}

// Notify sends a best-effort notification. The returned error is a
// NotificationError the caller should log and otherwise ignore.
func (a *Activities) Notify(ctx context.Context, in NotifyInput) error {
	ctx, finish := a.begin(ctx, NameNotify, in.Key)
	_, err := idempotency.Do(ctx, a.store, NameNotify, in.Key, in.params(),
		func(ctx context.Context) (struct{}, error) {
			err := a.providers.Notifier.Notify(ctx, in.Channel, in.Message)
			return struct{}{}, classifyFailure(ctx, err, ticket.KindNotificationError)
		})
	finish(err)
	return err
}

// classifyFailure maps provider errors onto the taxonomy so they are
// recorded. Context errors pass through unrecorded.
func classifyFailure(ctx context.Context, err error, kind ticket.Kind) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := ticket.AsOperationError(err); ok {
		return err
	}
	return ticket.Errorf(kind, "%v", err)
}

func rankMatches(matches []ticket.KnowledgeMatch, limit int) []ticket.KnowledgeMatch {
	out := make([]ticket.KnowledgeMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= MinSimilarity {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (a *Activities) fallback(ctx context.Context, activity, key string, err error) {
	activityFallback.Add(ctx, 1, metric.WithAttributes(attribute.String("activity", activity)))
	a.logger.Warn("provider failed, using fallback",
		zap.String("activity", activity),
		zap.String("key", key),
		zap.Error(err),
	)
}

// begin opens the activity span; the returned func ends it and records
// metrics.
func (a *Activities) begin(ctx context.Context, activity, key string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "activities."+activity)
	span.SetAttributes(
		attribute.String("activity", activity),
		attribute.String("idempotency_key", key),
	)
	start := time.Now()

	return ctx, func(err error) {
		attrs := metric.WithAttributes(attribute.String("activity", activity))
		activityDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			kind := string(ticket.KindOf(err))
			if kind == "" {
				kind = "internal"
			}
			activityErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("activity", activity),
				attribute.String("kind", kind),
			))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
