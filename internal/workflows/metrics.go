package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/fyrsmithlabs/ticketd/internal/orchestrator"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Metric names emitted through the workflow metrics handler, which skips
// emission during replay.
const (
	metricWorkflowCompleted = "ticketd_ticket_workflow_completed"
	metricWorkflowFailed    = "ticketd_ticket_workflow_failed"
	metricWorkflowLatency   = "ticketd_ticket_workflow_latency"
	metricNotificationFail  = "ticketd_ticket_workflow_notification_failures"
	metricFallbacks         = "ticketd_ticket_workflow_fallbacks"
)

// noteCounts splits Outcome notes into failed notifications and advisory
// fallbacks.
func noteCounts(notes []string) (notifications, fallbacks int64) {
	for _, n := range notes {
		if orchestrator.IsNotifyNote(n) {
			notifications++
		} else {
			fallbacks++
		}
	}
	return notifications, fallbacks
}

func recordOutcome(ctx workflow.Context, out *ticket.Outcome) {
	h := workflow.GetMetricsHandler(ctx).WithTags(map[string]string{"path": out.Path})
	h.Counter(metricWorkflowCompleted).Inc(1)
	notifications, fallbacks := noteCounts(out.Notes)
	if notifications > 0 {
		h.Counter(metricNotificationFail).Inc(notifications)
	}
	if fallbacks > 0 {
		h.Counter(metricFallbacks).Inc(fallbacks)
	}
	h.Gauge(metricWorkflowLatency).Update(out.Elapsed.Seconds())
}

func recordFailure(ctx workflow.Context, kind string) {
	if kind == "" {
		kind = "internal"
	}
	workflow.GetMetricsHandler(ctx).
		WithTags(map[string]string{"kind": kind}).
		Counter(metricWorkflowFailed).Inc(1)
}
