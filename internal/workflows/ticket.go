// Package workflows hosts ticket processing on Temporal.
//
// TicketWorkflow runs the same drive loop as the in-process orchestrator,
// with activities executed through workflow.ExecuteActivity and the clock
// taken from workflow.Now, so a replayed workflow makes the same decisions
// and reuses the same idempotency keys.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/ticketd/internal/activities"
	"github.com/fyrsmithlabs/ticketd/internal/orchestrator"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// TaskQueue is the queue the worker polls.
const TaskQueue = "ticket-processing"

// TicketWorkflowInput is the workflow argument.
type TicketWorkflowInput struct {
	Ticket ticket.Ticket `json:"ticket"`
}

// WorkflowID is the workflow id used for a ticket. One ticket maps to one
// workflow id, so concurrent submissions of the same ticket join one run.
func WorkflowID(ticketID string) string {
	return "ticket-" + ticketID
}

// DefaultActivityOptions are applied to every activity in TicketWorkflow.
// Only infrastructure errors are retried; recorded failures are
// non-retryable (see EncodeError).
func DefaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: operationKinds,
		},
	}
}

// TicketWorkflow processes one ticket.
func TicketWorkflow(ctx workflow.Context, input TicketWorkflowInput) (*ticket.Outcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ticket workflow", "ticket_id", input.Ticket.ID)

	ctx = workflow.WithActivityOptions(ctx, DefaultActivityOptions())

	out, err := orchestrator.Drive(
		&temporalRunner{ctx: ctx},
		orchestrator.ClockFunc(func() time.Time { return workflow.Now(ctx) }),
		logger,
		input.Ticket,
	)
	if err != nil {
		logger.Error("Ticket workflow failed", "ticket_id", input.Ticket.ID, "error", err)
		recordFailure(ctx, string(ticket.KindOf(err)))
		return nil, EncodeError(err)
	}

	recordOutcome(ctx, out)
	logger.Info("Ticket workflow completed",
		"ticket_id", out.TicketID,
		"status", string(out.FinalStatus),
		"path", out.Path)
	return out, nil
}

// temporalRunner executes activities by name on the workflow's task queue.
type temporalRunner struct {
	ctx workflow.Context
}

var _ orchestrator.Runner = (*temporalRunner)(nil)

func (r *temporalRunner) Classify(in activities.ClassifyInput) (ticket.Classification, error) {
	var out ticket.Classification
	err := workflow.ExecuteActivity(r.ctx, activities.NameClassify, in).Get(r.ctx, &out)
	return out, DecodeError(err)
}

func (r *temporalRunner) SearchKnowledge(in activities.SearchInput) (ticket.SearchResult, error) {
	var out ticket.SearchResult
	err := workflow.ExecuteActivity(r.ctx, activities.NameSearchKnowledge, in).Get(r.ctx, &out)
	return out, DecodeError(err)
}

func (r *temporalRunner) GenerateText(in activities.GenerateInput) (string, error) {
	var out string
	err := workflow.ExecuteActivity(r.ctx, activities.NameGenerateText, in).Get(r.ctx, &out)
	return out, DecodeError(err)
}

func (r *temporalRunner) UpdateStatus(in activities.UpdateStatusInput) error {
	return DecodeError(workflow.ExecuteActivity(r.ctx, activities.NameUpdateStatus, in).Get(r.ctx, nil))
}

func (r *temporalRunner) Notify(in activities.NotifyInput) error {
	return DecodeError(workflow.ExecuteActivity(r.ctx, activities.NameNotify, in).Get(r.ctx, nil))
}
