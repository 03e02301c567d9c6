// Package speech implements the voice-note pipeline: normalize the OGG/Opus
// attachment to 16 kHz mono WAV, transcribe it through the STT fallback
// chain, and synthesize speech through the TTS fallback chain.
package speech

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitromudr/tg-translator/internal/resilience"
	"github.com/hitromudr/tg-translator/pkg/audio"
	"github.com/hitromudr/tg-translator/pkg/provider/stt"
	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

// Transcript is the outcome of transcribing one voice note.
type Transcript struct {
	Text     string
	Tier     string
	Fallback bool
}

// Pipeline runs speech-to-text and text-to-speech behind their fallback
// chains. It is safe for concurrent use.
type Pipeline struct {
	sttGroup *resilience.FallbackGroup[stt.Provider]
	ttsGroup *resilience.FallbackGroup[tts.Provider]
	log      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-note records.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPipeline builds a Pipeline over the given provider chains. ttsGroup may
// be nil when synthesis is not configured; Synthesize then fails cleanly.
func NewPipeline(sttGroup *resilience.FallbackGroup[stt.Provider], ttsGroup *resilience.FallbackGroup[tts.Provider], opts ...Option) *Pipeline {
	p := &Pipeline{
		sttGroup: sttGroup,
		ttsGroup: ttsGroup,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transcribe converts a Telegram voice note (OGG/Opus bytes) into text.
// language is an ISO 639-1 hint forwarded to the providers; empty means
// autodetect.
func (p *Pipeline) Transcribe(ctx context.Context, ogg []byte, language string) (Transcript, error) {
	if len(ogg) == 0 {
		return Transcript{}, fmt.Errorf("speech: empty voice note")
	}

	wav, err := audio.VoiceToWAV(ogg)
	if err != nil {
		return Transcript{}, fmt.Errorf("speech: normalize voice note: %w", err)
	}
	return p.TranscribeWAV(ctx, wav, language)
}

// TranscribeWAV runs already-normalized WAV audio (16 kHz mono s16le) through
// the STT chain. Used directly by the HTTP API for WAV uploads.
func (p *Pipeline) TranscribeWAV(ctx context.Context, wav []byte, language string) (Transcript, error) {
	if len(wav) == 0 {
		return Transcript{}, fmt.Errorf("speech: empty audio")
	}

	text, tier, err := resilience.ExecuteTagged(ctx, p.sttGroup,
		func(ctx context.Context, prov stt.Provider) (string, error) {
			return prov.Transcribe(ctx, wav, language)
		})
	if err != nil {
		return Transcript{}, fmt.Errorf("speech: transcribe: %w", err)
	}

	p.log.InfoContext(ctx, "voice note transcribed",
		"tier", tier, "language", language, "chars", len(text))

	return Transcript{
		Text:     text,
		Tier:     tier,
		Fallback: tier != p.sttGroup.PrimaryName(),
	}, nil
}

// Synthesize renders text as speech through the TTS chain.
func (p *Pipeline) Synthesize(ctx context.Context, text, language, gender string) (tts.Result, error) {
	if p.ttsGroup == nil || p.ttsGroup.Len() == 0 {
		return tts.Result{}, fmt.Errorf("speech: no synthesis providers configured")
	}
	if text == "" {
		return tts.Result{}, fmt.Errorf("speech: empty text")
	}

	res, tier, err := resilience.ExecuteTagged(ctx, p.ttsGroup,
		func(ctx context.Context, prov tts.Provider) (tts.Result, error) {
			return prov.Synthesize(ctx, text, language, gender)
		})
	if err != nil {
		return tts.Result{}, fmt.Errorf("speech: synthesize: %w", err)
	}

	p.log.InfoContext(ctx, "speech synthesized",
		"tier", tier, "language", language, "format", res.Format, "bytes", len(res.Data))
	return res, nil
}
