package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Processor starts TicketWorkflow through a Temporal client and waits for
// its outcome.
type Processor struct {
	client    client.Client
	taskQueue string
}

// NewProcessor creates a Processor. An empty taskQueue uses TaskQueue.
func NewProcessor(c client.Client, taskQueue string) *Processor {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &Processor{client: c, taskQueue: taskQueue}
}

// ProcessTicket starts (or joins) the workflow for t and waits for it.
func (p *Processor) ProcessTicket(ctx context.Context, t ticket.Ticket) (*ticket.Outcome, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	run, err := p.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(t.ID),
		TaskQueue: p.taskQueue,
	}, TicketWorkflow, TicketWorkflowInput{Ticket: t})
	if err != nil {
		return nil, fmt.Errorf("starting workflow for ticket %s: %w", t.ID, err)
	}

	var out ticket.Outcome
	if err := run.Get(ctx, &out); err != nil {
		return nil, DecodeError(err)
	}
	return &out, nil
}
