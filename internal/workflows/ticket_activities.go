package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/fyrsmithlabs/ticketd/internal/activities"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// TicketActivities exposes Activities to Temporal. Method names are the
// activity names used by TicketWorkflow.
type TicketActivities struct {
	acts *activities.Activities
}

// NewTicketActivities wraps acts.
func NewTicketActivities(acts *activities.Activities) *TicketActivities {
	return &TicketActivities{acts: acts}
}

func (a *TicketActivities) Classify(ctx context.Context, in activities.ClassifyInput) (ticket.Classification, error) {
	out, err := a.acts.Classify(ctx, in)
	return out, EncodeError(err)
}

func (a *TicketActivities) SearchKnowledge(ctx context.Context, in activities.SearchInput) (ticket.SearchResult, error) {
	out, err := a.acts.SearchKnowledge(ctx, in)
	return out, EncodeError(err)
}

func (a *TicketActivities) GenerateText(ctx context.Context, in activities.GenerateInput) (string, error) {
	out, err := a.acts.GenerateText(ctx, in)
	return out, EncodeError(err)
}

func (a *TicketActivities) UpdateStatus(ctx context.Context, in activities.UpdateStatusInput) error {
	return EncodeError(a.acts.UpdateStatus(ctx, in))
}

func (a *TicketActivities) Notify(ctx context.Context, in activities.NotifyInput) error {
	err := a.acts.Notify(ctx, in)
	if err != nil {
		activity.GetLogger(ctx).Warn("Notification failed", "key", in.Key, "channel", in.Channel, "error", err)
	}
	return EncodeError(err)
}

// Register registers the ticket workflow and activities on w.
func Register(w worker.Registry, acts *activities.Activities) {
	w.RegisterWorkflow(TicketWorkflow)
	w.RegisterActivity(NewTicketActivities(acts))
}
