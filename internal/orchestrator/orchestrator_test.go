package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/ticketd/internal/activities"
	"github.com/fyrsmithlabs/ticketd/internal/classify"
	"github.com/fyrsmithlabs/ticketd/internal/idempotency"
	"github.com/fyrsmithlabs/ticketd/internal/knowledge"
	"github.com/fyrsmithlabs/ticketd/internal/respond"
	"github.com/fyrsmithlabs/ticketd/internal/routing"
	"github.com/fyrsmithlabs/ticketd/internal/status"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// tickClock advances one second per call.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickClock() *tickClock {
	return &tickClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

type sent struct {
	channel string
	message string
}

// recordingNotifier records deliveries and optionally fails.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, channel, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sent{channel: channel, message: message})
	return nil
}

type countingSearcher struct {
	inner   knowledge.Searcher
	mu      sync.Mutex
	queries []string
}

func (c *countingSearcher) Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error) {
	c.mu.Lock()
	c.queries = append(c.queries, query)
	c.mu.Unlock()
	return c.inner.Search(ctx, query, limit)
}

type fixedSearcher struct {
	matches []ticket.KnowledgeMatch
	err     error
}

func (f fixedSearcher) Search(context.Context, string, int) ([]ticket.KnowledgeMatch, error) {
	return f.matches, f.err
}

type fixedClassifier ticket.Classification

func (f fixedClassifier) Classify(context.Context, string) (ticket.Classification, error) {
	return ticket.Classification(f), nil
}

type failingUpdater struct{}

func (failingUpdater) UpdateStatus(context.Context, string, ticket.Status) error {
	return ticket.Errorf(ticket.KindUpdateError, "ticket system unavailable")
}

type stack struct {
	orch     *Orchestrator
	notifier *recordingNotifier
	searcher *countingSearcher
	status   *status.Memory
	logs     *observer.ObservedLogs
}

type stackOption func(*activities.Providers)

func newStack(t *testing.T, opts ...stackOption) *stack {
	t.Helper()

	tmpl, err := respond.NewTemplate("")
	require.NoError(t, err)

	s := &stack{
		notifier: &recordingNotifier{},
		searcher: &countingSearcher{inner: knowledge.NewKeyword(knowledge.DefaultCorpus())},
		status:   status.NewMemory(status.WithClock(func() time.Time { return time.Unix(0, 0) })),
	}
	providers := activities.Providers{
		Classifier: classify.NewHeuristic(),
		Searcher:   s.searcher,
		Generator:  tmpl,
		Status:     s.status,
		Notifier:   s.notifier,
	}
	for _, opt := range opts {
		opt(&providers)
	}

	acts, err := activities.New(idempotency.NewMemoryGate(), providers)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	s.logs = logs
	s.orch = New(acts, WithClock(newTickClock()), WithLogger(zap.New(core)))
	return s
}

func TestProcess_CriticalPasswordReset(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	out, err := s.orch.Process(ctx, "T-1", "urgent: cannot reset password")
	require.NoError(t, err)

	assert.Equal(t, "T-1", out.TicketID)
	assert.Equal(t, ticket.StatusInProgress, out.FinalStatus)
	assert.Equal(t, string(routing.PathCritical), out.Path)
	assert.Equal(t, routing.Version, out.RoutingVersion)
	assert.Contains(t, out.ResponseText, "How to reset your password")
	assert.Contains(t, out.ResponseText, "Forgot password")
	assert.Empty(t, out.Notes)

	require.Len(t, s.notifier.sent, 1)
	assert.Equal(t, routing.ChannelAlerts, s.notifier.sent[0].channel)
	assert.Contains(t, s.notifier.sent[0].message, "T-1")
	assert.Equal(t, []string{"reset-password"}, s.searcher.queries)

	current, err := s.status.Current(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, current)
}

func TestProcess_FeatureRequestNormalPath(t *testing.T) {
	s := newStack(t)

	out, err := s.orch.Process(context.Background(), "T-2", "feature request: dark mode")
	require.NoError(t, err)

	assert.Equal(t, ticket.StatusResolved, out.FinalStatus)
	assert.Equal(t, string(routing.PathNormal), out.Path)
	// No knowledge match, so the reply is built from the ticket text.
	assert.Contains(t, out.ResponseText, "feature request: dark mode")
	assert.Empty(t, s.notifier.sent)
}

func TestProcess_Deterministic(t *testing.T) {
	run := func() []byte {
		s := newStack(t)
		out, err := s.orch.Process(context.Background(), "T-1", "urgent: cannot reset password")
		require.NoError(t, err)
		data, err := json.Marshal(out)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, run(), run())
}

func TestProcess_ReplayDoesNotRepeatEffects(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	first, err := s.orch.Process(ctx, "T-1", "urgent: cannot reset password")
	require.NoError(t, err)
	second, err := s.orch.Process(ctx, "T-1", "urgent: cannot reset password")
	require.NoError(t, err)

	assert.Equal(t, first.ResponseText, second.ResponseText)
	assert.Equal(t, first.FinalStatus, second.FinalStatus)
	assert.Len(t, s.notifier.sent, 1)
	assert.Len(t, s.searcher.queries, 1)
	assert.Len(t, s.status.History("T-1"), 1)
}

func TestProcess_KeyReuseWithDifferentTextIsFatal(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.orch.Process(ctx, "T-1", "urgent: cannot reset password")
	require.NoError(t, err)

	_, err = s.orch.Process(ctx, "T-1", "feature request: dark mode")
	require.Error(t, err)
	assert.True(t, ticket.IsKind(err, ticket.KindIdempotencyMismatch))
}

func TestProcess_CriticalBeatsPositiveSentiment(t *testing.T) {
	s := newStack(t, func(p *activities.Providers) {
		p.Classifier = fixedClassifier{Intent: "outage", Category: ticket.CategoryTechnical, Urgency: ticket.UrgencyCritical, Sentiment: ticket.SentimentPositive}
	})

	out, err := s.orch.Process(context.Background(), "T-3", "thanks, but everything is down")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, out.FinalStatus)
	require.Len(t, s.notifier.sent, 1)
	assert.Equal(t, routing.ChannelAlerts, s.notifier.sent[0].channel)
}

func TestProcess_ElevatedConfidenceThreshold(t *testing.T) {
	elevated := fixedClassifier{Intent: "refund-request", Category: ticket.CategoryBilling, Urgency: ticket.UrgencyHigh, Sentiment: ticket.SentimentNegative}

	tests := []struct {
		name       string
		similarity float64
		status     ticket.Status
		channel    string
	}{
		{name: "exactly 0.8 escalates for review", similarity: 0.8, status: ticket.StatusInProgress, channel: routing.ChannelReview},
		{name: "above 0.8 resolves", similarity: 0.81, status: ticket.StatusResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, func(p *activities.Providers) {
				p.Classifier = elevated
				p.Searcher = fixedSearcher{matches: []ticket.KnowledgeMatch{{ID: "kb-004", Title: "Requesting a refund", Content: "Refunds take five days.", Similarity: tt.similarity}}}
			})

			out, err := s.orch.Process(context.Background(), "T-4", "I want my money back, this is awful")
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.FinalStatus)
			assert.Equal(t, string(routing.PathElevated), out.Path)

			if tt.channel == "" {
				assert.Empty(t, s.notifier.sent)
				assert.Contains(t, out.ResponseText, "Refunds take five days.")
			} else {
				require.Len(t, s.notifier.sent, 1)
				assert.Equal(t, tt.channel, s.notifier.sent[0].channel)
				assert.Equal(t, routing.PersonalizedAssistanceResponse, out.ResponseText)
			}
		})
	}
}

func TestProcess_ElevatedSearchFailureEscalates(t *testing.T) {
	s := newStack(t, func(p *activities.Providers) {
		p.Classifier = fixedClassifier{Intent: "bug-report", Category: ticket.CategoryTechnical, Urgency: ticket.UrgencyHigh, Sentiment: ticket.SentimentNeutral}
		p.Searcher = fixedSearcher{err: errors.New("index offline")}
	})

	out, err := s.orch.Process(context.Background(), "T-5", "export is broken and we are blocked")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, out.FinalStatus)
	assert.Equal(t, routing.EscalationResponse, out.ResponseText)
	require.Len(t, s.notifier.sent, 1)
	assert.Equal(t, routing.ChannelEscalations, s.notifier.sent[0].channel)
	assert.NotEmpty(t, out.Notes)
}

func TestProcess_SearchFailureFallsBackToTicketText(t *testing.T) {
	s := newStack(t, func(p *activities.Providers) {
		p.Searcher = fixedSearcher{err: errors.New("index offline")}
	})

	out, err := s.orch.Process(context.Background(), "T-6", "How do I export my data?")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusResolved, out.FinalStatus)
	assert.Contains(t, out.ResponseText, "How do I export my data?")
}

func TestProcess_NotificationFailureIsIgnored(t *testing.T) {
	s := newStack(t)
	s.notifier.err = errors.New("broker down")

	out, err := s.orch.Process(context.Background(), "T-7", "urgent: cannot reset password")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, out.FinalStatus)
	require.Len(t, out.Notes, 1)
	assert.Contains(t, out.Notes[0], "notify alerts failed")
	assert.Equal(t, 1, s.logs.FilterMessage("notification failed").Len())
}

func TestProcess_StatusFailureAborts(t *testing.T) {
	s := newStack(t, func(p *activities.Providers) {
		p.Status = failingUpdater{}
	})

	out, err := s.orch.Process(context.Background(), "T-8", "feature request: dark mode")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, ticket.IsKind(err, ticket.KindUpdateError))
}

func TestProcess_InvalidTicket(t *testing.T) {
	s := newStack(t)

	_, err := s.orch.Process(context.Background(), "", "text")
	assert.True(t, ticket.IsKind(err, ticket.KindInvalidInput))
}

func TestProcess_EmptyTextUsesDefaultClassification(t *testing.T) {
	s := newStack(t)

	out, err := s.orch.Process(context.Background(), "T-9", "")
	require.NoError(t, err)
	assert.Equal(t, string(routing.PathNormal), out.Path)
	assert.Equal(t, ticket.StatusResolved, out.FinalStatus)
	assert.NotEmpty(t, out.ResponseText)
}

// stubRunner returns canned results, with per-activity errors standing in
// for a runner whose activity calls fail outright.
type stubRunner struct {
	class       ticket.Classification
	classifyErr error
	searchErr   error
	generateErr error
	statusErr   error
	notifyErr   error

	statuses []ticket.Status
}

func (r *stubRunner) Classify(activities.ClassifyInput) (ticket.Classification, error) {
	return r.class, r.classifyErr
}

func (r *stubRunner) SearchKnowledge(activities.SearchInput) (ticket.SearchResult, error) {
	if r.searchErr != nil {
		return ticket.SearchResult{}, r.searchErr
	}
	return ticket.SearchResult{Matches: []ticket.KnowledgeMatch{{ID: "kb-1", Title: "Answer", Content: "do this", Similarity: 0.9}}}, nil
}

func (r *stubRunner) GenerateText(activities.GenerateInput) (string, error) {
	if r.generateErr != nil {
		return "", r.generateErr
	}
	return "generated", nil
}

func (r *stubRunner) UpdateStatus(in activities.UpdateStatusInput) error {
	if r.statusErr != nil {
		return r.statusErr
	}
	r.statuses = append(r.statuses, in.Status)
	return nil
}

func (r *stubRunner) Notify(activities.NotifyInput) error { return r.notifyErr }

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{}) {}

func TestDrive_RunnerFailures(t *testing.T) {
	critical := ticket.Classification{Intent: "reset-password", Category: ticket.CategoryAuthentication, Urgency: ticket.UrgencyCritical, Sentiment: ticket.SentimentNeutral}
	elevated := ticket.Classification{Intent: "bug-report", Category: ticket.CategoryTechnical, Urgency: ticket.UrgencyHigh, Sentiment: ticket.SentimentNeutral}
	normal := ticket.Classification{Intent: "feature-request", Category: ticket.CategoryFeatureRequest, Urgency: ticket.UrgencyLow, Sentiment: ticket.SentimentNeutral}
	infra := errors.New("activity error: retries exhausted")
	mismatch := ticket.Errorf(ticket.KindIdempotencyMismatch, "key reused")

	tests := []struct {
		name       string
		runner     *stubRunner
		wantErr    ticket.Kind
		wantCause  error
		wantStatus ticket.Status
		wantPath   routing.Path
		wantReply  string
		wantNote   string
	}{
		{
			name:       "notify failure is noted",
			runner:     &stubRunner{class: critical, notifyErr: infra},
			wantStatus: ticket.StatusInProgress,
			wantPath:   routing.PathCritical,
			wantReply:  "generated",
			wantNote:   "notify alerts failed: activity error: retries exhausted",
		},
		{
			name:       "notify kinds other than mismatch are noted",
			runner:     &stubRunner{class: critical, notifyErr: ticket.Errorf(ticket.KindNotFound, "no such channel")},
			wantStatus: ticket.StatusInProgress,
			wantPath:   routing.PathCritical,
			wantReply:  "generated",
		},
		{
			name:       "search failure degrades",
			runner:     &stubRunner{class: normal, searchErr: infra},
			wantStatus: ticket.StatusResolved,
			wantPath:   routing.PathNormal,
			wantReply:  "generated",
			wantNote:   NoteSearchDegraded,
		},
		{
			name:       "search failure on elevated path escalates",
			runner:     &stubRunner{class: elevated, searchErr: infra},
			wantStatus: ticket.StatusInProgress,
			wantPath:   routing.PathElevated,
			wantReply:  routing.EscalationResponse,
			wantNote:   NoteSearchDegraded,
		},
		{
			name:       "generate failure falls back",
			runner:     &stubRunner{class: normal, generateErr: infra},
			wantStatus: ticket.StatusResolved,
			wantPath:   routing.PathNormal,
			wantReply:  respond.FallbackAcknowledgment,
			wantNote:   NoteGenerateFallback,
		},
		{
			name:       "classify infrastructure failure uses default",
			runner:     &stubRunner{class: critical, classifyErr: infra},
			wantStatus: ticket.StatusResolved,
			wantPath:   routing.PathNormal,
			wantReply:  "generated",
			wantNote:   NoteClassifyFallback,
		},
		{
			name:    "classify operation error propagates",
			runner:  &stubRunner{classifyErr: ticket.Errorf(ticket.KindFetchError, "recorded failure")},
			wantErr: ticket.KindFetchError,
		},
		{
			name:    "mismatch on notify is fatal",
			runner:  &stubRunner{class: critical, notifyErr: mismatch},
			wantErr: ticket.KindIdempotencyMismatch,
		},
		{
			name:    "mismatch on search is fatal",
			runner:  &stubRunner{class: normal, searchErr: mismatch},
			wantErr: ticket.KindIdempotencyMismatch,
		},
		{
			name:    "mismatch on generate is fatal",
			runner:  &stubRunner{class: normal, generateErr: mismatch},
			wantErr: ticket.KindIdempotencyMismatch,
		},
		{
			name:      "cancellation is fatal",
			runner:    &stubRunner{class: normal, searchErr: context.Canceled},
			wantCause: context.Canceled,
		},
		{
			name:    "status failure aborts",
			runner:  &stubRunner{class: normal, statusErr: ticket.Errorf(ticket.KindUpdateError, "down")},
			wantErr: ticket.KindUpdateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Drive(tt.runner, newTickClock(), nopLogger{}, ticket.Ticket{ID: "T-1", Text: "text"})

			if tt.wantErr != "" || tt.wantCause != nil {
				require.Error(t, err)
				assert.Nil(t, out)
				if tt.wantErr != "" {
					assert.True(t, ticket.IsKind(err, tt.wantErr), "got %v", err)
				}
				if tt.wantCause != nil {
					assert.ErrorIs(t, err, tt.wantCause)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.FinalStatus)
			assert.Equal(t, string(tt.wantPath), out.Path)
			assert.Equal(t, tt.wantReply, out.ResponseText)
			assert.Equal(t, []ticket.Status{tt.wantStatus}, tt.runner.statuses)
			if tt.wantNote != "" {
				assert.Contains(t, out.Notes, tt.wantNote)
			}
		})
	}
}

func TestIsNotifyNote(t *testing.T) {
	assert.True(t, IsNotifyNote("notify review failed: broker down"))
	assert.False(t, IsNotifyNote(NoteSearchDegraded))
	assert.False(t, IsNotifyNote(NoteGenerateFallback))
	assert.False(t, IsNotifyNote(NoteClassifyFallback))
}

func TestDrive_UsesClockForElapsed(t *testing.T) {
	s := newStack(t)
	out, err := s.orch.Process(context.Background(), "T-10", "feature request: dark mode")
	require.NoError(t, err)
	assert.Equal(t, time.Second, out.Elapsed)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "classify:T-1", Key(ClassifyKeySuffix, "T-1"))
	assert.Equal(t, "notify-alerts:T-1", Key("notify-alerts", "T-1"))
}
