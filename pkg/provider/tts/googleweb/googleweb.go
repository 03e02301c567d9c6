// Package googleweb provides a tts.Provider backed by the public Google
// Translate text-to-speech endpoint. Like its translation sibling it needs
// no API key and serves as the last tier of the synthesis fallback chain.
package googleweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const defaultBaseURL = "https://translate.google.com"

// maxTextLen is the longest input the endpoint accepts in one request.
const maxTextLen = 200

// Provider implements tts.Provider against /translate_tts. The endpoint has
// a single voice per language; gender is ignored.
type Provider struct {
	baseURL string
	client  *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the endpoint base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates a Provider with a 15 second request timeout.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider. The endpoint returns MP3 audio.
func (p *Provider) Synthesize(ctx context.Context, text, language, _ string) (tts.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return tts.Result{}, fmt.Errorf("googleweb tts: empty text")
	}
	if len([]rune(text)) > maxTextLen {
		text = string([]rune(text)[:maxTextLen])
	}

	q := url.Values{
		"ie":     {"UTF-8"},
		"client": {"tw-ob"},
		"tl":     {language},
		"q":      {text},
	}
	reqURL := p.baseURL + "/translate_tts?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return tts.Result{}, fmt.Errorf("googleweb tts: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return tts.Result{}, fmt.Errorf("googleweb tts: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return tts.Result{}, fmt.Errorf("googleweb tts: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tts.Result{}, fmt.Errorf("googleweb tts: status %d", resp.StatusCode)
	}
	if len(body) == 0 {
		return tts.Result{}, fmt.Errorf("googleweb tts: empty audio response")
	}
	return tts.Result{Data: body, Format: tts.FormatMP3}, nil
}
