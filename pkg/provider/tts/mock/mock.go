// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider is a test double whose behaviour is driven by SynthesizeFunc.
// When SynthesizeFunc is nil, Synthesize returns Result.
type Provider struct {
	SynthesizeFunc func(ctx context.Context, text, language, gender string) (tts.Result, error)
	Result         tts.Result

	mu    sync.Mutex
	calls int
}

// Synthesize implements tts.Provider and counts the call.
func (p *Provider) Synthesize(ctx context.Context, text, language, gender string) (tts.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, text, language, gender)
	}
	return p.Result, nil
}

// Calls returns the number of Synthesize invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
