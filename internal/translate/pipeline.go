// Package translate implements the per-message translation pipeline: load
// chat settings and dictionary, resolve the translation direction from the
// original text, apply dictionary substitutions, then run the provider
// fallback chain.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitromudr/tg-translator/internal/dictionary"
	"github.com/hitromudr/tg-translator/internal/direction"
	"github.com/hitromudr/tg-translator/internal/resilience"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/pkg/provider/translate"
)

// Result is the outcome of translating one message.
type Result struct {
	// Text is the translated message.
	Text string

	// Source and Target are the resolved direction's language codes.
	Source string
	Target string

	// Tier names the provider tier that produced Text. The reserved value
	// "probe" means the direction probe's output was reused without a second
	// provider call.
	Tier string

	// Fallback is true when Text did not come from the first tier.
	Fallback bool
}

// TierProbe marks results reused from the direction probe.
const TierProbe = "probe"

// Pipeline wires the direction resolver, the dictionary engine and the
// provider fallback chain into a single entry point. It is safe for
// concurrent use.
type Pipeline struct {
	store    store.Store
	group    *resilience.FallbackGroup[translate.Provider]
	resolver *direction.Resolver
	log      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-message records.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithResolverOptions forwards options to the direction resolver the
// pipeline builds for itself.
func WithResolverOptions(opts ...direction.Option) Option {
	return func(p *Pipeline) {
		p.resolver = direction.NewResolver(proberFunc(p.translatePair), opts...)
	}
}

// NewPipeline builds a Pipeline over the given store and provider chain. The
// direction resolver's probe translations run through the same chain, so a
// degraded primary provider degrades probing the same way it degrades
// translation.
func NewPipeline(st store.Store, group *resilience.FallbackGroup[translate.Provider], opts ...Option) *Pipeline {
	p := &Pipeline{
		store: st,
		group: group,
		log:   slog.Default(),
	}
	p.resolver = direction.NewResolver(proberFunc(p.translatePair))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// proberFunc adapts a function to direction.Prober.
type proberFunc func(ctx context.Context, text, source, target string) (string, error)

func (f proberFunc) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

// TranslateMessage runs the full pipeline for a chat message. The direction
// is resolved on the text as written; dictionary substitution happens after,
// so a dictionary entry mapping a Cyrillic term to a Latin one cannot flip
// the detected direction.
func (p *Pipeline) TranslateMessage(ctx context.Context, chatID int64, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("translate: empty message")
	}

	settings, err := p.store.GetSettings(ctx, chatID)
	if err != nil {
		return Result{}, fmt.Errorf("translate: load settings: %w", err)
	}
	entries, err := p.store.GetDictionary(ctx, chatID)
	if err != nil {
		return Result{}, fmt.Errorf("translate: load dictionary: %w", err)
	}

	decision := p.resolver.Resolve(ctx, text, settings.Primary, settings.Secondary)
	prepared := dictionary.Apply(text, entries)

	// The probe already translated the untouched text in the resolved
	// direction; when the dictionary left the message alone that work is the
	// answer and a second provider call would be a duplicate.
	if decision.ProbeResult != "" && prepared == text {
		p.log.DebugContext(ctx, "reusing probe translation",
			"chat_id", chatID, "source", decision.Source, "target", decision.Target)
		return Result{
			Text:   decision.ProbeResult,
			Source: decision.Source,
			Target: decision.Target,
			Tier:   TierProbe,
		}, nil
	}

	out, tier, err := p.runChain(ctx, prepared, decision.Source, decision.Target)
	if err != nil {
		return Result{}, err
	}

	p.log.InfoContext(ctx, "message translated",
		"chat_id", chatID,
		"source", decision.Source,
		"target", decision.Target,
		"method", string(decision.Method),
		"tier", tier)

	return Result{
		Text:     out,
		Source:   decision.Source,
		Target:   decision.Target,
		Tier:     tier,
		Fallback: tier != p.group.PrimaryName(),
	}, nil
}

// TranslatePair translates text between an explicit language pair, skipping
// settings, dictionary and direction resolution. Used by the HTTP API.
func (p *Pipeline) TranslatePair(ctx context.Context, text, source, target string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("translate: empty message")
	}

	out, tier, err := p.runChain(ctx, text, source, target)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:     out,
		Source:   source,
		Target:   target,
		Tier:     tier,
		Fallback: tier != p.group.PrimaryName(),
	}, nil
}

func (p *Pipeline) translatePair(ctx context.Context, text, source, target string) (string, error) {
	out, _, err := p.runChain(ctx, text, source, target)
	return out, err
}

func (p *Pipeline) runChain(ctx context.Context, text, source, target string) (string, string, error) {
	out, tier, err := resilience.ExecuteTagged(ctx, p.group,
		func(ctx context.Context, prov translate.Provider) (string, error) {
			return prov.Translate(ctx, text, source, target)
		})
	if err != nil {
		return "", "", fmt.Errorf("translate %s->%s: %w", source, target, err)
	}
	return out, tier, nil
}
