package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// DefaultLLMPrompt instructs the model to draft a reply.
const DefaultLLMPrompt = `You are a customer support agent. Write a short, friendly reply to a customer.
The ticket was classified as intent "{{.intent}}" in category "{{.category}}" with {{.urgency}} urgency and {{.sentiment}} sentiment.
Base the answer only on the following material:

{{.context}}

Reply:`

// ContentGenerator is the subset of llms.Model used by LLM.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LLMConfig configures an OpenAI-compatible model.
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	// Prompt overrides DefaultLLMPrompt.
	Prompt string
}

// LLM drafts replies with a language model.
type LLM struct {
	model  ContentGenerator
	prompt prompts.PromptTemplate
	opts   []llms.CallOption
}

var _ Generator = (*LLM)(nil)

// NewLLM wraps model. An empty prompt uses DefaultLLMPrompt.
func NewLLM(model ContentGenerator, prompt string, opts ...llms.CallOption) *LLM {
	if prompt == "" {
		prompt = DefaultLLMPrompt
	}
	return &LLM{
		model:  model,
		prompt: prompts.NewPromptTemplate(prompt, promptVariables),
		opts:   opts,
	}
}

// NewOpenAI builds an LLM generator backed by an OpenAI-compatible API.
func NewOpenAI(cfg LLMConfig) (*LLM, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for local servers.
		apiKey = "placeholder"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	callOpts := []llms.CallOption{llms.WithTemperature(cfg.Temperature)}
	if cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return NewLLM(model, cfg.Prompt, callOpts...), nil
}

// Generate implements Generator. Provider errors come back as FetchError.
func (l *LLM) Generate(ctx context.Context, kbText string, c ticket.Classification) (string, error) {
	text, err := l.prompt.Format(promptValues(kbText, c))
	if err != nil {
		return "", ticket.Errorf(ticket.KindFetchError, "rendering prompt: %v", err)
	}

	resp, err := l.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, text),
	}, l.opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", ticket.Errorf(ticket.KindFetchError, "generating reply: %v", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ticket.Errorf(ticket.KindFetchError, "model returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", ticket.Errorf(ticket.KindFetchError, "model returned an empty reply")
	}
	return out, nil
}
