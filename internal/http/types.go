package http

import (
	"strings"

	"github.com/fyrsmithlabs/ticketd/internal/routing"
	"github.com/fyrsmithlabs/ticketd/internal/status"
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// TicketRequest is the request body for POST /api/v1/tickets.
type TicketRequest struct {
	ID               string `json:"id"`
	Title            string `json:"title,omitempty"`
	Text             string `json:"text"`
	RequesterContact string `json:"requester_contact,omitempty"`
	PriorityHint     string `json:"priority_hint,omitempty"`
}

// Ticket converts the request into a ticket.
func (r TicketRequest) Ticket() ticket.Ticket {
	return ticket.Ticket{
		ID:               r.ID,
		Title:            r.Title,
		Text:             r.Text,
		RequesterContact: r.RequesterContact,
		PriorityHint:     r.PriorityHint,
	}
}

// Validate rejects submissions the API will not queue. The workflow accepts
// empty text, but a submitted ticket with nothing to say is a client error.
func (r TicketRequest) Validate() error {
	if err := r.Ticket().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Text) == "" {
		return ticket.Errorf(ticket.KindInvalidInput, "ticket %s has empty text", r.ID)
	}
	return nil
}

// StatusResponse is the response body for GET /api/v1/tickets/:id/status.
type StatusResponse struct {
	TicketID string              `json:"ticket_id"`
	Status   ticket.Status       `json:"status"`
	History  []status.Transition `json:"history,omitempty"`
}

// PlanRequest is the request body for POST /api/v1/plan. SearchResult
// resumes a pending plan when present.
type PlanRequest struct {
	Classification ticket.Classification `json:"classification"`
	SearchResult   *ticket.SearchResult  `json:"search_result,omitempty"`
}

// Validate rejects urgency and sentiment values the router does not know.
// Empty values are allowed and route like medium/neutral.
func (r PlanRequest) Validate() error {
	switch r.Classification.Urgency {
	case "", ticket.UrgencyLow, ticket.UrgencyMedium, ticket.UrgencyHigh, ticket.UrgencyCritical:
	default:
		return ticket.Errorf(ticket.KindInvalidInput, "unknown urgency %q", r.Classification.Urgency)
	}
	switch r.Classification.Sentiment {
	case "", ticket.SentimentPositive, ticket.SentimentNeutral, ticket.SentimentNegative:
	default:
		return ticket.Errorf(ticket.KindInvalidInput, "unknown sentiment %q", r.Classification.Sentiment)
	}
	return nil
}

// PlanResponse is the response body for POST /api/v1/plan.
type PlanResponse struct {
	Plan           routing.Plan `json:"plan"`
	RoutingVersion string       `json:"routing_version"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
