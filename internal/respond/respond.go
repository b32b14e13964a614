// Package respond drafts customer-facing replies from knowledge context and
// a ticket classification.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// FallbackAcknowledgment is returned in place of a generated reply when the
// generator fails.
const FallbackAcknowledgment = "Thank you for contacting support. We have received your request and a member of our team will follow up shortly."

// Generator produces reply text.
type Generator interface {
	Generate(ctx context.Context, kbText string, c ticket.Classification) (string, error)
}

// DefaultReplyTemplate is the Go template used by Template. It receives
// context, intent, category, urgency and sentiment.
const DefaultReplyTemplate = `Hello,

Thank you for reaching out about your {{.category}} request.
{{- if eq .sentiment "negative"}} We are sorry for the trouble this has caused.{{end}}

{{.context}}

If this does not resolve the issue, reply to this message and we will take another look.`

var promptVariables = []string{"context", "intent", "category", "urgency", "sentiment"}

func promptValues(kbText string, c ticket.Classification) map[string]any {
	return map[string]any{
		"context":   strings.TrimSpace(kbText),
		"intent":    c.Intent,
		"category":  c.Category,
		"urgency":   string(c.Urgency),
		"sentiment": string(c.Sentiment),
	}
}

// Template renders replies from a prompt template without calling a model.
type Template struct {
	prompt prompts.PromptTemplate
}

var _ Generator = (*Template)(nil)

// NewTemplate parses tmpl; an empty tmpl uses DefaultReplyTemplate.
func NewTemplate(tmpl string) (*Template, error) {
	if tmpl == "" {
		tmpl = DefaultReplyTemplate
	}
	p := prompts.NewPromptTemplate(tmpl, promptVariables)
	// Render once so a broken template fails at startup, not per ticket.
	if _, err := p.Format(promptValues("", ticket.DefaultClassification())); err != nil {
		return nil, fmt.Errorf("invalid reply template: %w", err)
	}
	return &Template{prompt: p}, nil
}

// Generate implements Generator.
func (t *Template) Generate(ctx context.Context, kbText string, c ticket.Classification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(kbText) == "" {
		return "", ticket.Errorf(ticket.KindFetchError, "no context to generate from")
	}
	out, err := t.prompt.Format(promptValues(kbText, c))
	if err != nil {
		return "", ticket.Errorf(ticket.KindFetchError, "rendering reply: %v", err)
	}
	return strings.TrimSpace(out), nil
}
