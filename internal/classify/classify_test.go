package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

func TestHeuristic_Classify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ticket.Classification
	}{
		{
			name: "urgent password reset",
			text: "urgent: cannot reset password",
			want: ticket.Classification{Intent: "reset-password", Category: ticket.CategoryAuthentication, Urgency: ticket.UrgencyCritical, Sentiment: ticket.SentimentNeutral},
		},
		{
			name: "feature request",
			text: "feature request: dark mode",
			want: ticket.Classification{Intent: "feature-request", Category: ticket.CategoryFeatureRequest, Urgency: ticket.UrgencyLow, Sentiment: ticket.SentimentNeutral},
		},
		{
			name: "angry billing",
			text: "I was charged twice, this is unacceptable and I am furious!",
			want: ticket.Classification{Intent: "billing-question", Category: ticket.CategoryBilling, Urgency: ticket.UrgencyMedium, Sentiment: ticket.SentimentNegative},
		},
		{
			name: "blocked by bug",
			text: "The export is broken and we are blocked.",
			want: ticket.Classification{Intent: "bug-report", Category: ticket.CategoryTechnical, Urgency: ticket.UrgencyHigh, Sentiment: ticket.SentimentNeutral},
		},
		{
			name: "unknown text falls back to defaults",
			text: "Hello there",
			want: ticket.DefaultClassification(),
		},
		{
			name: "positive",
			text: "Thanks, love the product! Where can I find the invoice?",
			want: ticket.Classification{Intent: "billing-question", Category: ticket.CategoryBilling, Urgency: ticket.UrgencyMedium, Sentiment: ticket.SentimentPositive},
		},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeuristic_WordBoundaries(t *testing.T) {
	h := NewHeuristic()
	// "debug" must not trigger the "bug" rule.
	got, err := h.Classify(context.Background(), "how do I enable debug output")
	require.NoError(t, err)
	assert.Equal(t, "general-inquiry", got.Intent)
}

func TestHeuristic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Classify(ctx, "urgent")
	assert.ErrorIs(t, err, context.Canceled)
}
