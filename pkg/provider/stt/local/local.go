// Package local provides an stt.Provider backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model file is large and loading it takes seconds, so it is loaded
// lazily on first use: a process that never loses its cloud transcription
// tier never pays the memory cost. Concurrent first uses share a single load
// via singleflight, and a failed load is retried on the next call rather
// than poisoning the provider.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"golang.org/x/sync/singleflight"

	"github.com/hitromudr/tg-translator/pkg/audio"
	"github.com/hitromudr/tg-translator/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using whisper.cpp Go bindings.
// The loaded model is shared across all calls; each call gets its own
// whisper context because contexts are not thread-safe.
type Provider struct {
	modelPath string
	log       *slog.Logger

	loadGroup singleflight.Group
	mu        sync.Mutex
	model     whisperlib.Model
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithLogger sets the logger used for model lifecycle records.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a Provider that will load the whisper.cpp model from modelPath
// on first use. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("local stt: modelPath must not be empty")
	}
	p := &Provider{
		modelPath: modelPath,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model if it was loaded.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		err := p.model.Close()
		p.model = nil
		return err
	}
	return nil
}

// loadModel returns the shared model, loading it on first call. Concurrent
// callers during the initial load block on the same singleflight key and all
// receive the one load's outcome.
func (p *Provider) loadModel() (whisperlib.Model, error) {
	p.mu.Lock()
	if p.model != nil {
		m := p.model
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	v, err, _ := p.loadGroup.Do("load", func() (any, error) {
		p.log.Info("loading local whisper model", "path", p.modelPath)
		model, err := whisperlib.New(p.modelPath)
		if err != nil {
			return nil, fmt.Errorf("local stt: load model %q: %w", p.modelPath, err)
		}

		p.mu.Lock()
		p.model = model
		p.mu.Unlock()
		p.log.Info("local whisper model loaded", "path", p.modelPath)
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(whisperlib.Model), nil
}

// Transcribe implements stt.Provider. It decodes the WAV into float32
// samples and runs whisper.cpp inference on a fresh context.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	samples, _, err := audio.DecodeWAV(wav)
	if err != nil {
		return "", fmt.Errorf("local stt: decode wav: %w", err)
	}
	if len(samples) == 0 {
		return "", errors.New("local stt: empty audio")
	}

	model, err := p.loadModel()
	if err != nil {
		return "", err
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("local stt: create context: %w", err)
	}

	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			p.log.Warn("local stt: failed to set language, autodetecting",
				"language", language, "error", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("local stt: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("local stt: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
