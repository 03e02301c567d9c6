// Package googleweb provides a translate.Provider backed by the public
// Google Translate web endpoint (the same one the website's widget uses).
// It needs no API key, which makes it the natural last tier of a fallback
// chain, but it is rate-limited and its response format is unversioned.
package googleweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitromudr/tg-translator/pkg/provider/translate"
)

// Compile-time assertion that Provider satisfies translate.Provider.
var _ translate.Provider = (*Provider)(nil)

const defaultBaseURL = "https://translate.googleapis.com"

// Provider implements translate.Provider against the translate_a/single
// endpoint.
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

// Translate implements translate.Provider. An empty or "auto" source lets the
// endpoint detect the language itself.
func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("googleweb: empty text")
	}
	if source == "" {
		source = "auto"
	}

	q := url.Values{
		"client": {"gtx"},
		"dt":     {"t"},
		"sl":     {source},
		"tl":     {target},
		"q":      {text},
	}
	reqURL := p.baseURL + "/translate_a/single?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("googleweb: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("googleweb: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("googleweb: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("googleweb: status %d: %s", resp.StatusCode, truncate(body))
	}

	out, err := parseResponse(body)
	if err != nil {
		return "", err
	}
	return out, nil
}

// parseResponse extracts the translation from the endpoint's nested-array
// payload: [[["translated","original",...],...],...]. Sentences are split
// across the inner arrays and must be concatenated.
func parseResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("googleweb: decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("googleweb: empty response payload")
	}

	var sentences [][]json.RawMessage
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("googleweb: decode sentences: %w", err)
	}

	var b strings.Builder
	for _, s := range sentences {
		if len(s) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(s[0], &part); err != nil {
			continue
		}
		b.WriteString(part)
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("googleweb: no translation in response")
	}
	return out, nil
}

func truncate(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
