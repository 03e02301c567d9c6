// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hitromudr/tg-translator/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a test double whose behaviour is driven by TranscribeFunc.
// When TranscribeFunc is nil, Transcribe returns Text.
type Provider struct {
	TranscribeFunc func(ctx context.Context, wav []byte, language string) (string, error)
	Text           string

	mu    sync.Mutex
	calls int
}

// Transcribe implements stt.Provider and counts the call.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, wav, language)
	}
	return p.Text, nil
}

// Calls returns the number of Transcribe invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
