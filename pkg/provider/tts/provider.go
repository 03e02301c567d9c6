// Package tts defines the Provider interface for text-to-speech backends.
//
// Implementors must be safe for concurrent use.
package tts

import "context"

// Audio formats a Provider may return.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// Result carries synthesized speech and its container format.
type Result struct {
	Data   []byte
	Format string
}

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize renders text spoken in the given language. gender is "male"
	// or "female"; backends with a single voice may ignore it.
	// Implementations must propagate ctx cancellation promptly.
	Synthesize(ctx context.Context, text, language, gender string) (Result, error)
}
