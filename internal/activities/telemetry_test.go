package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ticketd/internal/telemetry"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Only test in this package that installs global providers.
func TestActivities_EmitSpansAndMetrics(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	tel.Install(t)
	ctx := context.Background()

	f := newFixture(t)
	f.classifier.On("Classify", mock.Anything, mock.Anything).Return(ticket.Classification{}, errors.New("model offline")).Once()
	f.updater.On("UpdateStatus", mock.Anything, "T-9", ticket.StatusResolved).Return(errors.New("db down")).Once()

	_, err := f.acts.Classify(ctx, ClassifyInput{Key: "classify:T-9", Text: "hello"})
	require.NoError(t, err)
	err = f.acts.UpdateStatus(ctx, UpdateStatusInput{Key: "status-resolved:T-9", TicketID: "T-9", Status: ticket.StatusResolved})
	require.Error(t, err)

	tel.AssertSpanExists(t, "activities.Classify")
	tel.AssertSpanAttribute(t, "activities.Classify", "idempotency_key", "classify:T-9")
	tel.AssertSpanExists(t, "activities.UpdateStatus")
	assert.Equal(t, "Error", tel.SpanByName("activities.UpdateStatus").Status().Code.String())

	names, err := tel.MetricNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "ticketd.activities.duration")
	assert.Contains(t, names, "ticketd.activities.fallbacks")
	assert.Contains(t, names, "ticketd.activities.errors")
}
