package activities

import "github.com/fyrsmithlabs/ticketd/internal/ticket"

// Activity names, used as idempotency namespaces and Temporal activity
// names.
const (
	NameClassify        = "Classify"
	NameSearchKnowledge = "SearchKnowledge"
	NameGenerateText    = "GenerateText"
	NameUpdateStatus    = "UpdateStatus"
	NameNotify          = "Notify"
)

// MinSimilarity is the lowest similarity kept in search results.
const MinSimilarity = 0.1

// FailureClass says how an activity's failures are handled.
type FailureClass string

const (
	// FailureAdvisory failures are replaced by a default value.
	FailureAdvisory FailureClass = "advisory"
	// FailureMandatory failures abort the workflow.
	FailureMandatory FailureClass = "mandatory"
	// FailureBestEffort failures are reported and ignored.
	FailureBestEffort FailureClass = "best-effort"
)

// ClassOf returns the failure class of an activity.
func ClassOf(activity string) FailureClass {
	switch activity {
	case NameUpdateStatus:
		return FailureMandatory
	case NameNotify:
		return FailureBestEffort
	default:
		return FailureAdvisory
	}
}

// Inputs carry the idempotency key alongside the request. The key is not
// part of the fingerprint; params strips it.

// ClassifyInput is the input of Classify.
type ClassifyInput struct {
	Key  string `json:"key,omitempty"`
	Text string `json:"text"`
}

func (in ClassifyInput) params() ClassifyInput { in.Key = ""; return in }

// SearchInput is the input of SearchKnowledge.
type SearchInput struct {
	Key   string `json:"key,omitempty"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (in SearchInput) params() SearchInput { in.Key = ""; return in }

// GenerateInput is the input of GenerateText.
type GenerateInput struct {
	Key            string                `json:"key,omitempty"`
	Context        string                `json:"context"`
	Classification ticket.Classification `json:"classification"`
}

func (in GenerateInput) params() GenerateInput { in.Key = ""; return in }

// UpdateStatusInput is the input of UpdateStatus.
type UpdateStatusInput struct {
	Key      string        `json:"key,omitempty"`
	TicketID string        `json:"ticket_id"`
	Status   ticket.Status `json:"status"`
}

func (in UpdateStatusInput) params() UpdateStatusInput { in.Key = ""; return in }

// NotifyInput is the input of Notify.
type NotifyInput struct {
	Key     string `json:"key,omitempty"`
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (in NotifyInput) params() NotifyInput { in.Key = ""; return in }
