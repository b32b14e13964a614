package ticket

import (
	"fmt"
	"time"
)

// Sentiment is the emotional tone detected in a ticket.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Urgency is the derived urgency of a ticket.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Status is the lifecycle state of a ticket in the system of record.
type Status string

const (
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in-progress"
	StatusWaitingResponse Status = "waiting-response"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusWaitingResponse, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Category values produced by the classifier.
const (
	CategoryGeneral        = "general"
	CategoryAuthentication = "authentication"
	CategoryBilling        = "billing"
	CategoryTechnical      = "technical"
	CategoryFeatureRequest = "feature-request"
	CategoryAccount        = "account"
)

// Ticket is an immutable support request supplied by the caller.
type Ticket struct {
	ID               string    `json:"id"`
	Title            string    `json:"title,omitempty"`
	Text             string    `json:"text"`
	RequesterContact string    `json:"requester_contact,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	PriorityHint     string    `json:"priority_hint,omitempty"`
}

// Validate checks the fields the workflow cannot run without. Only the id
// is required: every idempotency key derives from it. Empty text classifies
// to DefaultClassification.
func (t Ticket) Validate() error {
	if t.ID == "" {
		return Errorf(KindInvalidInput, "ticket id is required")
	}
	if len(t.ID) > 128 {
		return Errorf(KindInvalidInput, "ticket id exceeds 128 characters")
	}
	return nil
}

// Classification is the result of classifying a ticket's text.
type Classification struct {
	Intent    string    `json:"intent"`
	Sentiment Sentiment `json:"sentiment"`
	Urgency   Urgency   `json:"urgency"`
	Category  string    `json:"category"`
}

// DefaultClassification is substituted when the classifier fails.
func DefaultClassification() Classification {
	return Classification{
		Intent:    "general-inquiry",
		Sentiment: SentimentNeutral,
		Urgency:   UrgencyMedium,
		Category:  CategoryGeneral,
	}
}

// KnowledgeMatch is one knowledge-base article returned by a search.
type KnowledgeMatch struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SearchResult is the ordered result of a knowledge search.
//
// Degraded is set when the search provider failed and an empty result was
// substituted, which lets routing distinguish "search failed" from
// "search found nothing relevant".
type SearchResult struct {
	Matches  []KnowledgeMatch `json:"matches"`
	Degraded bool             `json:"degraded,omitempty"`
}

// Best returns the highest-ranked match, if any.
func (r SearchResult) Best() (KnowledgeMatch, bool) {
	if len(r.Matches) == 0 {
		return KnowledgeMatch{}, false
	}
	return r.Matches[0], true
}

// Outcome is the terminal artifact of one workflow execution.
type Outcome struct {
	TicketID       string        `json:"ticket_id"`
	FinalStatus    Status        `json:"final_status"`
	ResponseText   string        `json:"response_text"`
	Path           string        `json:"path"`
	RoutingVersion string        `json:"routing_version"`
	Elapsed        time.Duration `json:"elapsed"`
	Notes          []string      `json:"notes,omitempty"`
}

// String renders a short human-readable summary.
func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s via %s path (%s)", o.TicketID, o.FinalStatus, o.Path, o.Elapsed)
}
