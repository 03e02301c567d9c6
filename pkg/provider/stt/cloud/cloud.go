// Package cloud provides an stt.Provider backed by an OpenAI-compatible
// transcription API. The default target is Groq's hosted whisper-large-v3,
// which speaks the OpenAI audio API verbatim; pointing the base URL at
// api.openai.com (or any compatible server) works the same way.
package cloud

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hitromudr/tg-translator/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "whisper-large-v3"
)

// Provider implements stt.Provider using the OpenAI-compatible
// /audio/transcriptions endpoint.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Groq API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel overrides the default transcription model.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout. Defaults to 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a cloud transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cloud stt: apiKey must not be empty")
	}

	cfg := &config{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: 60 * time.Second,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithRequestTimeout(cfg.timeout),
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
	}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if len(wav) == 0 {
		return "", fmt.Errorf("cloud stt: empty audio")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "voice.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("cloud stt: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
