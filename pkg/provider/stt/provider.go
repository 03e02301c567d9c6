// Package stt defines the Provider interface for speech-to-text backends.
//
// Providers consume a complete voice message as a 16 kHz mono 16-bit WAV and
// return its transcript in one shot. Voice notes are short, so batch
// transcription keeps the contract simple and lets remote APIs and the local
// whisper.cpp engine sit behind the same interface in a fallback chain.
//
// Implementors must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts wav (a complete RIFF/WAVE file, 16 kHz mono s16le)
	// into text. language is an ISO 639-1 hint; empty means autodetect.
	// Implementations must propagate ctx cancellation promptly.
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}
