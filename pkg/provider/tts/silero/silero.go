// Package silero provides a tts.Provider backed by a Silero TTS HTTP server.
// Silero gives natural-sounding Russian and Ukrainian voices and runs fully
// offline, which makes it the preferred first tier when its server is up.
package silero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const defaultSampleRate = 48000

// voices maps (language, gender) to a Silero speaker ID. Languages absent
// here are not covered by the deployed models; Synthesize fails for them so
// the fallback chain can hand the request to the web tier.
var voices = map[string]map[string]string{
	"ru": {"male": "aidar", "female": "kseniya"},
	"uk": {"male": "mykyta", "female": "mykyta"},
	"en": {"male": "en_2", "female": "en_1"},
}

// Provider implements tts.Provider against a Silero HTTP server's /tts
// endpoint.
type Provider struct {
	baseURL string
	client  *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates a Provider talking to the Silero server at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("silero: baseURL must not be empty")
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type ttsRequest struct {
	Text       string `json:"text"`
	Speaker    string `json:"speaker"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize implements tts.Provider. The server returns a WAV body.
func (p *Provider) Synthesize(ctx context.Context, text, language, gender string) (tts.Result, error) {
	speaker, err := speakerFor(language, gender)
	if err != nil {
		return tts.Result{}, err
	}

	payload, err := json.Marshal(ttsRequest{
		Text:       text,
		Speaker:    speaker,
		SampleRate: defaultSampleRate,
	})
	if err != nil {
		return tts.Result{}, fmt.Errorf("silero: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/tts", bytes.NewReader(payload))
	if err != nil {
		return tts.Result{}, fmt.Errorf("silero: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return tts.Result{}, fmt.Errorf("silero: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return tts.Result{}, fmt.Errorf("silero: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tts.Result{}, fmt.Errorf("silero: status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return tts.Result{}, fmt.Errorf("silero: empty audio response")
	}
	return tts.Result{Data: body, Format: tts.FormatWAV}, nil
}

func speakerFor(language, gender string) (string, error) {
	byGender, ok := voices[language]
	if !ok {
		return "", fmt.Errorf("silero: no voice for language %q", language)
	}
	if speaker, ok := byGender[gender]; ok {
		return speaker, nil
	}
	return byGender["male"], nil
}
