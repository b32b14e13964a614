package routing

import (
	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Version identifies the decision constants below. It is recorded on every
// outcome; bump it whenever a threshold, limit or precedence rule changes.
const Version = "v1"

// HighConfidence is the similarity a best match must exceed (strictly) for
// the elevated path to answer automatically.
const HighConfidence = 0.8

// Search limits per path.
const (
	CriticalSearchLimit = 3
	ElevatedSearchLimit = 5
	NormalSearchLimit   = 3
)

// Notification channels.
const (
	ChannelAlerts      = "alerts"
	ChannelEscalations = "escalations"
	ChannelReview      = "review"
)

// Fixed responses used when no reply is generated.
const (
	EscalationResponse             = "We could not look up an answer automatically, so your ticket has been escalated to our support team. An agent will contact you shortly."
	PersonalizedAssistanceResponse = "Your ticket has been escalated for personalized assistance. A specialist will review it and get back to you."
)

// Path names the branch taken by the engine.
type Path string

const (
	PathCritical Path = "critical"
	PathElevated Path = "elevated"
	PathNormal   Path = "normal"
)

// StepKind is the activity a step invokes.
type StepKind string

const (
	StepNotify       StepKind = "notify"
	StepUpdateStatus StepKind = "update-status"
	StepSearch       StepKind = "search-knowledge"
	StepGenerate     StepKind = "generate-text"
)

// Step is one activity call in a plan. Only the fields relevant to Kind are
// set. Key is the idempotency key suffix, unique within a plan; the
// orchestrator appends the ticket id.
type Step struct {
	Kind    StepKind      `json:"kind"`
	Key     string        `json:"key"`
	Channel string        `json:"channel,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Status  ticket.Status `json:"status,omitempty"`
	Query   string        `json:"query,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Plan is the engine's decision. Generate steps take their context from the
// most recent search step via GenerationContext.
type Plan struct {
	Path        Path          `json:"path"`
	Steps       []Step        `json:"steps"`
	FinalStatus ticket.Status `json:"final_status"`
	// Response is the reply when the plan has no generate step.
	Response string `json:"response,omitempty"`
	// Pending is set while the plan waits for Resume.
	Pending bool `json:"pending,omitempty"`
	// Decision explains how a resumed plan was completed.
	Decision string `json:"decision,omitempty"`
}

// Decisions recorded by Resume.
const (
	DecisionSearchDegraded = "search-degraded"
	DecisionHighConfidence = "high-confidence"
	DecisionLowConfidence  = "low-confidence"
)

func notify(channel, reason string) Step {
	return Step{Kind: StepNotify, Key: "notify-" + channel, Channel: channel, Reason: reason}
}

func updateStatus(s ticket.Status) Step {
	return Step{Kind: StepUpdateStatus, Key: "status-" + string(s), Status: s}
}

func search(query string, limit int) Step {
	return Step{Kind: StepSearch, Key: "search", Query: query, Limit: limit}
}

func generate() Step {
	return Step{Kind: StepGenerate, Key: "generate"}
}

// SelectPath applies the precedence rules.
func SelectPath(c ticket.Classification) Path {
	switch {
	case c.Urgency == ticket.UrgencyCritical:
		return PathCritical
	case c.Sentiment == ticket.SentimentNegative || c.Urgency == ticket.UrgencyHigh:
		return PathElevated
	default:
		return PathNormal
	}
}

// Route plans the activities for a classification.
func Route(c ticket.Classification) Plan {
	query := c.Intent
	switch SelectPath(c) {
	case PathCritical:
		return Plan{
			Path: PathCritical,
			Steps: []Step{
				notify(ChannelAlerts, "critical urgency"),
				updateStatus(ticket.StatusInProgress),
				search(query, CriticalSearchLimit),
				generate(),
			},
			FinalStatus: ticket.StatusInProgress,
		}
	case PathElevated:
		return Plan{
			Path:        PathElevated,
			Steps:       []Step{search(query, ElevatedSearchLimit)},
			FinalStatus: ticket.StatusInProgress,
			Pending:     true,
		}
	default:
		return Plan{
			Path: PathNormal,
			Steps: []Step{
				search(query, NormalSearchLimit),
				generate(),
				updateStatus(ticket.StatusResolved),
			},
			FinalStatus: ticket.StatusResolved,
		}
	}
}

// Resume completes a pending plan with the result of its search step. A
// plan that is not pending is returned unchanged.
func Resume(p Plan, result ticket.SearchResult) Plan {
	if !p.Pending {
		return p
	}

	next := Plan{
		Path:  p.Path,
		Steps: append([]Step(nil), p.Steps...),
	}

	best, ok := result.Best()
	switch {
	case result.Degraded:
		next.Steps = append(next.Steps,
			notify(ChannelEscalations, "knowledge search unavailable"),
			updateStatus(ticket.StatusInProgress),
		)
		next.FinalStatus = ticket.StatusInProgress
		next.Response = EscalationResponse
		next.Decision = DecisionSearchDegraded
	case ok && best.Similarity > HighConfidence:
		next.Steps = append(next.Steps,
			generate(),
			updateStatus(ticket.StatusResolved),
		)
		next.FinalStatus = ticket.StatusResolved
		next.Decision = DecisionHighConfidence
	default:
		next.Steps = append(next.Steps,
			notify(ChannelReview, "no confident knowledge match"),
			updateStatus(ticket.StatusInProgress),
		)
		next.FinalStatus = ticket.StatusInProgress
		next.Response = PersonalizedAssistanceResponse
		next.Decision = DecisionLowConfidence
	}
	return next
}

// GenerationContext returns the text a generate step works from: the best
// match of the preceding search, or the raw ticket text when there is none.
func GenerationContext(result ticket.SearchResult, ticketText string) string {
	best, ok := result.Best()
	if !ok {
		return ticketText
	}
	if best.Title == "" {
		return best.Content
	}
	return best.Title + "\n\n" + best.Content
}
