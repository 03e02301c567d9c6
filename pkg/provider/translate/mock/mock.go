// Package mock provides a scriptable translate.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hitromudr/tg-translator/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Call records a single Translate invocation.
type Call struct {
	Text   string
	Source string
	Target string
}

// Provider is a test double whose behaviour is driven by TranslateFunc.
// When TranslateFunc is nil, Translate echoes the input text.
type Provider struct {
	TranslateFunc func(ctx context.Context, text, source, target string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Translate implements translate.Provider and records the call.
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Text: text, Source: source, Target: target})
	p.mu.Unlock()

	if p.TranslateFunc != nil {
		return p.TranslateFunc(ctx, text, source, target)
	}
	return text, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
