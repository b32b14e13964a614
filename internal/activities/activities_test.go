package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ticketd/internal/idempotency"
	"github.com/fyrsmithlabs/ticketd/internal/respond"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, text string) (ticket.Classification, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(ticket.Classification), args.Error(1)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error) {
	args := m.Called(ctx, query, limit)
	matches, _ := args.Get(0).([]ticket.KnowledgeMatch)
	return matches, args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Generate(ctx context.Context, kbText string, c ticket.Classification) (string, error) {
	args := m.Called(ctx, kbText, c)
	return args.String(0), args.Error(1)
}

type mockUpdater struct{ mock.Mock }

func (m *mockUpdater) UpdateStatus(ctx context.Context, ticketID string, s ticket.Status) error {
	return m.Called(ctx, ticketID, s).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, channel, message string) error {
	return m.Called(ctx, channel, message).Error(0)
}

type fixture struct {
	acts       *Activities
	classifier *mockClassifier
	searcher   *mockSearcher
	generator  *mockGenerator
	updater    *mockUpdater
	notifier   *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		classifier: &mockClassifier{},
		searcher:   &mockSearcher{},
		generator:  &mockGenerator{},
		updater:    &mockUpdater{},
		notifier:   &mockNotifier{},
	}
	acts, err := New(idempotency.NewMemoryGate(), Providers{
		Classifier: f.classifier,
		Searcher:   f.searcher,
		Generator:  f.generator,
		Status:     f.updater,
		Notifier:   f.notifier,
	})
	require.NoError(t, err)
	f.acts = acts
	return f
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Providers{})
	assert.Error(t, err)

	_, err = New(idempotency.NewMemoryGate(), Providers{})
	assert.ErrorContains(t, err, "classifier")
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("records the provider result", func(t *testing.T) {
		f := newFixture(t)
		want := ticket.Classification{Intent: "reset-password", Category: ticket.CategoryAuthentication, Urgency: ticket.UrgencyCritical, Sentiment: ticket.SentimentNeutral}
		f.classifier.On("Classify", mock.Anything, "urgent: cannot reset password").Return(want, nil).Once()

		in := ClassifyInput{Key: "classify:T-1", Text: "urgent: cannot reset password"}
		first, err := f.acts.Classify(ctx, in)
		require.NoError(t, err)
		second, err := f.acts.Classify(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, want, first)
		assert.Equal(t, first, second)
		f.classifier.AssertNumberOfCalls(t, "Classify", 1)
	})

	t.Run("falls back to the default classification", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.On("Classify", mock.Anything, mock.Anything).Return(ticket.Classification{}, errors.New("model offline")).Once()

		in := ClassifyInput{Key: "classify:T-2", Text: "hello"}
		got, err := f.acts.Classify(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, ticket.DefaultClassification(), got)

		// The fallback is recorded; the provider is not asked again.
		again, err := f.acts.Classify(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, got, again)
		f.classifier.AssertNumberOfCalls(t, "Classify", 1)
	})

	t.Run("reusing a key for other text is a mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.On("Classify", mock.Anything, mock.Anything).Return(ticket.DefaultClassification(), nil)

		_, err := f.acts.Classify(ctx, ClassifyInput{Key: "classify:T-3", Text: "a"})
		require.NoError(t, err)
		_, err = f.acts.Classify(ctx, ClassifyInput{Key: "classify:T-3", Text: "b"})
		assert.True(t, ticket.IsKind(err, ticket.KindIdempotencyMismatch))
	})

	t.Run("cancellation is not absorbed", func(t *testing.T) {
		f := newFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		f.classifier.On("Classify", mock.Anything, "x").Run(func(mock.Arguments) { cancel() }).
			Return(ticket.Classification{}, context.Canceled).Once()
		f.classifier.On("Classify", mock.Anything, "x").Return(ticket.DefaultClassification(), nil).Once()

		_, err := f.acts.Classify(cctx, ClassifyInput{Key: "classify:T-4", Text: "x"})
		require.ErrorIs(t, err, context.Canceled)

		_, err = f.acts.Classify(ctx, ClassifyInput{Key: "classify:T-4", Text: "x"})
		require.NoError(t, err)
		f.classifier.AssertNumberOfCalls(t, "Classify", 2)
	})
}

func TestSearchKnowledge(t *testing.T) {
	ctx := context.Background()

	t.Run("filters, orders and limits matches", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.On("Search", mock.Anything, "reset-password", 3).Return([]ticket.KnowledgeMatch{
			{ID: "low", Similarity: 0.05},
			{ID: "b", Similarity: 0.5},
			{ID: "a", Similarity: 0.9},
			{ID: "c", Similarity: 0.5},
			{ID: "d", Similarity: 0.2},
		}, nil).Once()

		got, err := f.acts.SearchKnowledge(ctx, SearchInput{Key: "search:T-1", Query: "reset-password", Limit: 3})
		require.NoError(t, err)
		assert.False(t, got.Degraded)

		ids := make([]string, len(got.Matches))
		for i, m := range got.Matches {
			ids[i] = m.ID
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("provider failure yields a degraded empty result", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

		in := SearchInput{Key: "search:T-2", Query: "billing", Limit: 5}
		got, err := f.acts.SearchKnowledge(ctx, in)
		require.NoError(t, err)
		assert.True(t, got.Degraded)
		assert.Empty(t, got.Matches)

		again, err := f.acts.SearchKnowledge(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, got, again)
		f.searcher.AssertNumberOfCalls(t, "Search", 1)
	})

	t.Run("different limit under the same key is a mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]ticket.KnowledgeMatch{}, nil)

		_, err := f.acts.SearchKnowledge(ctx, SearchInput{Key: "search:T-3", Query: "q", Limit: 3})
		require.NoError(t, err)
		_, err = f.acts.SearchKnowledge(ctx, SearchInput{Key: "search:T-3", Query: "q", Limit: 5})
		assert.True(t, ticket.IsKind(err, ticket.KindIdempotencyMismatch))
	})
}

func TestGenerateText(t *testing.T) {
	ctx := context.Background()
	c := ticket.DefaultClassification()

	t.Run("returns generated text", func(t *testing.T) {
		f := newFixture(t)
		f.generator.On("Generate", mock.Anything, "kb content", c).Return("reply", nil).Once()

		got, err := f.acts.GenerateText(ctx, GenerateInput{Key: "generate:T-1", Context: "kb content", Classification: c})
		require.NoError(t, err)
		assert.Equal(t, "reply", got)
	})

	t.Run("falls back to the acknowledgment", func(t *testing.T) {
		f := newFixture(t)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited")).Once()

		got, err := f.acts.GenerateText(ctx, GenerateInput{Key: "generate:T-2", Context: "x", Classification: c})
		require.NoError(t, err)
		assert.Equal(t, respond.FallbackAcknowledgment, got)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds once", func(t *testing.T) {
		f := newFixture(t)
		f.updater.On("UpdateStatus", mock.Anything, "T-1", ticket.StatusResolved).Return(nil).Once()

		in := UpdateStatusInput{Key: "status-resolved:T-1", TicketID: "T-1", Status: ticket.StatusResolved}
		require.NoError(t, f.acts.UpdateStatus(ctx, in))
		require.NoError(t, f.acts.UpdateStatus(ctx, in))
		f.updater.AssertNumberOfCalls(t, "UpdateStatus", 1)
	})

	t.Run("failure propagates and is replayed", func(t *testing.T) {
		f := newFixture(t)
		f.updater.On("UpdateStatus", mock.Anything, "T-2", ticket.StatusResolved).Return(errors.New("503 from ticket system")).Once()

		in := UpdateStatusInput{Key: "status-resolved:T-2", TicketID: "T-2", Status: ticket.StatusResolved}
		err := f.acts.UpdateStatus(ctx, in)
		require.Error(t, err)
		assert.True(t, ticket.IsKind(err, ticket.KindUpdateError))

		again := f.acts.UpdateStatus(ctx, in)
		assert.Equal(t, err.Error(), again.Error())
		f.updater.AssertNumberOfCalls(t, "UpdateStatus", 1)
	})

	t.Run("not found keeps its kind", func(t *testing.T) {
		f := newFixture(t)
		f.updater.On("UpdateStatus", mock.Anything, "T-404", mock.Anything).
			Return(ticket.Errorf(ticket.KindNotFound, "ticket T-404 is not registered")).Once()

		err := f.acts.UpdateStatus(ctx, UpdateStatusInput{Key: "k", TicketID: "T-404", Status: ticket.StatusResolved})
		assert.True(t, ticket.IsKind(err, ticket.KindNotFound))
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		f := newFixture(t)
		err := f.acts.UpdateStatus(ctx, UpdateStatusInput{TicketID: "T-1", Status: ticket.StatusResolved})
		assert.True(t, ticket.IsKind(err, ticket.KindInvalidInput))
		f.updater.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers once per key", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.On("Notify", mock.Anything, "alerts", "T-1 critical").Return(nil).Once()

		in := NotifyInput{Key: "notify-alerts:T-1", Channel: "alerts", Message: "T-1 critical"}
		require.NoError(t, f.acts.Notify(ctx, in))
		require.NoError(t, f.acts.Notify(ctx, in))
		f.notifier.AssertNumberOfCalls(t, "Notify", 1)
	})

	t.Run("failure is a notification error", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders")).Once()

		err := f.acts.Notify(ctx, NotifyInput{Key: "notify-alerts:T-2", Channel: "alerts", Message: "m"})
		assert.True(t, ticket.IsKind(err, ticket.KindNotificationError))
	})
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, FailureMandatory, ClassOf(NameUpdateStatus))
	assert.Equal(t, FailureBestEffort, ClassOf(NameNotify))
	assert.Equal(t, FailureAdvisory, ClassOf(NameClassify))
	assert.Equal(t, FailureAdvisory, ClassOf(NameSearchKnowledge))
	assert.Equal(t, FailureAdvisory, ClassOf(NameGenerateText))
}
