// Package translate defines the Provider interface for text translation
// backends.
//
// A translation provider wraps a remote API (an LLM behind an
// OpenAI-compatible endpoint, or the public Google web endpoint) and exposes
// a uniform interface so callers can stack providers into an ordered fallback
// chain without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use.
package translate

import "context"

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate renders text from the source language into the target
	// language. Both languages are ISO 639-1 codes (lowercase); source may be
	// "auto" for backends that support detection. Implementations must
	// propagate ctx cancellation promptly.
	Translate(ctx context.Context, text, source, target string) (string, error)
}
