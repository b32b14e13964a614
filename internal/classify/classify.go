// Package classify derives intent, category, urgency and sentiment from
// ticket text.
package classify

import (
	"context"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Classifier classifies free-form ticket text.
type Classifier interface {
	Classify(ctx context.Context, text string) (ticket.Classification, error)
}

// intentRule maps trigger phrases to an intent and category. Rules are
// evaluated in order; the first rule with a matching phrase wins.
type intentRule struct {
	Intent   string
	Category string
	Phrases  []string
}

var defaultIntentRules = []intentRule{
	{Intent: "reset-password", Category: ticket.CategoryAuthentication, Phrases: []string{"reset password", "reset my password", "forgot password", "password reset", "forgot my password"}},
	{Intent: "login-issue", Category: ticket.CategoryAuthentication, Phrases: []string{"cannot log in", "can't log in", "cannot login", "can't login", "locked out", "2fa", "two-factor", "sign in"}},
	{Intent: "feature-request", Category: ticket.CategoryFeatureRequest, Phrases: []string{"feature request", "would be nice", "please add", "it would be great", "wish list"}},
	{Intent: "refund-request", Category: ticket.CategoryBilling, Phrases: []string{"refund", "money back", "chargeback"}},
	{Intent: "billing-question", Category: ticket.CategoryBilling, Phrases: []string{"invoice", "billing", "charged", "payment", "subscription", "pricing"}},
	{Intent: "account-change", Category: ticket.CategoryAccount, Phrases: []string{"delete my account", "close my account", "change my email", "update my email", "account settings"}},
	{Intent: "bug-report", Category: ticket.CategoryTechnical, Phrases: []string{"error", "crash", "bug", "broken", "not working", "doesn't work", "fails", "500"}},
}

// Words that lift urgency. Critical beats high.
var (
	criticalWords = []string{"urgent", "emergency", "outage", "critical", "asap", "production down", "immediately"}
	highWords     = []string{"important", "blocked", "blocking", "soon as possible", "deadline", "cannot work"}
	lowWords      = []string{"whenever", "no rush", "low priority", "just curious", "feature request"}
)

var (
	negativeWords = []string{"angry", "frustrated", "terrible", "awful", "unacceptable", "worst", "hate", "disappointed", "ridiculous", "furious", "useless"}
	positiveWords = []string{"thanks", "thank you", "great", "love", "awesome", "appreciate", "excellent", "happy"}
)

// Heuristic is a rule-based Classifier. It is deterministic for a given
// text and never fails.
type Heuristic struct {
	rules []intentRule
}

var _ Classifier = (*Heuristic)(nil)

// NewHeuristic returns a Heuristic with the built-in rule set.
func NewHeuristic() *Heuristic {
	return &Heuristic{rules: defaultIntentRules}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(ctx context.Context, text string) (ticket.Classification, error) {
	if err := ctx.Err(); err != nil {
		return ticket.Classification{}, err
	}

	norm := normalize(text)
	c := ticket.DefaultClassification()

	for _, r := range h.rules {
		if containsAny(norm, r.Phrases) {
			c.Intent = r.Intent
			c.Category = r.Category
			break
		}
	}

	switch {
	case containsAny(norm, criticalWords):
		c.Urgency = ticket.UrgencyCritical
	case containsAny(norm, highWords):
		c.Urgency = ticket.UrgencyHigh
	case containsAny(norm, lowWords):
		c.Urgency = ticket.UrgencyLow
	}

	neg := countAny(norm, negativeWords)
	pos := countAny(norm, positiveWords)
	switch {
	case neg > pos:
		c.Sentiment = ticket.SentimentNegative
	case pos > neg:
		c.Sentiment = ticket.SentimentPositive
	}

	return c, nil
}

// normalize lowercases text, turns punctuation other than apostrophes into
// spaces and collapses whitespace, padding with a space on each side so
// phrase matching respects word boundaries.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(norm string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, " "+p+" ") {
			return true
		}
	}
	return false
}

func countAny(norm string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(norm, " "+w+" ")
	}
	return n
}
