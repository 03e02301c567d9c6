// Package llm provides a translate.Provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Gemini, Ollama, Mistral, Groq, and more.
//
// Usage:
//
//	p, err := llm.New("groq", "llama-3.3-70b-versatile", anyllmlib.WithAPIKey("gsk_..."))
//	p, err := llm.NewGroq("llama-3.3-70b-versatile")
package llm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/hitromudr/tg-translator/internal/lang"
	"github.com/hitromudr/tg-translator/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

const systemPrompt = "You are a translation engine. Translate the user's " +
	"message from %s to %s. Reply with the translation only: no quotes, no " +
	"explanations, no notes. Preserve the tone, formatting and emoji of the " +
	"original. If the message is already in %s, return it unchanged."

// Provider implements translate.Provider by asking an instruction-tuned chat
// model to translate. Temperature is pinned to zero so repeated requests for
// the same message produce stable output.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider backed by the given LLM provider name.
//
// providerName is one of: "groq", "openai", "gemini", "ollama", "mistral".
// model is the chat model to use (e.g. "llama-3.3-70b-versatile").
// opts are any-llm-go options (e.g. anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL); without an API key option the provider falls back
// to the relevant environment variable (GROQ_API_KEY, OPENAI_API_KEY, ...).
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llm translate: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llm translate: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm translate: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// NewGroq creates a Provider backed by Groq.
// Without options, it reads the GROQ_API_KEY environment variable.
func NewGroq(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("groq", model, opts...)
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "groq":
		return groq.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: groq, openai, gemini, ollama, mistral", providerName)
	}
}

// Translate implements translate.Provider. Language codes are expanded to
// full English names in the prompt; models follow "Russian" far more reliably
// than "ru".
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	sourceName := languageName(source)
	targetName := languageName(target)

	temperature := 0.0
	params := anyllmlib.CompletionParams{
		Model:       p.model,
		Temperature: &temperature,
		Messages: []anyllmlib.Message{
			{
				Role:    anyllmlib.RoleSystem,
				Content: fmt.Sprintf(systemPrompt, sourceName, targetName, targetName),
			},
			{
				Role:    anyllmlib.RoleUser,
				Content: text,
			},
		},
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm translate: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm translate: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if out == "" {
		return "", fmt.Errorf("llm translate: empty translation")
	}
	return out, nil
}

func languageName(code string) string {
	if code == "" || code == "auto" {
		return "the detected language"
	}
	return lang.Name(code)
}
