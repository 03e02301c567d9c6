// Package direction decides which way a message should be translated for a
// chat configured with a primary and a secondary language. The resolver is
// layered: a free script heuristic first, then a single probe translation,
// then a deterministic default, so most messages are classified without any
// provider call.
package direction

import (
	"context"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/hitromudr/tg-translator/internal/lang"
)

// DefaultSimilarityThreshold is the normalized Levenshtein similarity above
// which a probe result counts as "unchanged" by translation.
const DefaultSimilarityThreshold = 0.9

// Method records which layer of the resolver produced a decision.
type Method string

const (
	MethodScript  Method = "script"
	MethodProbe   Method = "probe"
	MethodDefault Method = "default"
)

// Prober performs the single probe translation the resolver may need: it
// translates text into the primary language and returns the result.
type Prober interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Decision is the resolver's output. When Method is MethodProbe, ProbeResult
// carries the probe's translation so a caller translating in the same
// direction can reuse it instead of paying for a second call.
type Decision struct {
	Source      string
	Target      string
	Method      Method
	ProbeResult string
}

// Resolver decides translation direction for (primary, secondary) pairs.
type Resolver struct {
	prober    Prober
	threshold float64
	log       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSimilarityThreshold overrides the probe similarity cutoff. Values
// outside (0, 1] are ignored.
func WithSimilarityThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithLogger sets the logger used for per-decision debug records.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver builds a Resolver that consults prober only when the script
// heuristic cannot decide.
func NewResolver(prober Prober, opts ...Option) *Resolver {
	r := &Resolver{
		prober:    prober,
		threshold: DefaultSimilarityThreshold,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the direction for text written in a chat whose languages
// are primary and secondary. The heuristic runs on the text as the author
// wrote it, before any dictionary rewriting, so that substituted terms cannot
// flip the detected script.
//
// When primary is a Cyrillic-script language, the presence or absence of
// Cyrillic letters decides immediately, even for text with no Cyrillic at
// all: such text cannot be in the primary language, so it is treated as
// secondary without spending a probe call. Otherwise one probe translation
// into primary is made: a near-identical result means the text already was in
// the primary language. If the probe fails, the default direction
// secondary→primary is used rather than surfacing the error, since a wrong
// direction is recoverable and a dropped message is not.
func (r *Resolver) Resolve(ctx context.Context, text, primary, secondary string) Decision {
	if lang.UsesCyrillic(primary) {
		d := Decision{Method: MethodScript}
		if lang.ContainsCyrillic(text) {
			d.Source, d.Target = primary, secondary
		} else {
			d.Source, d.Target = secondary, primary
		}
		r.log.DebugContext(ctx, "direction resolved by script",
			"source", d.Source, "target", d.Target)
		return d
	}

	probed, err := r.prober.Translate(ctx, text, secondary, primary)
	if err != nil {
		r.log.WarnContext(ctx, "direction probe failed, using default",
			"error", err, "primary", primary, "secondary", secondary)
		return Decision{Source: secondary, Target: primary, Method: MethodDefault}
	}

	if r.unchanged(text, probed) {
		// Translation into primary left the text alone: it was primary already.
		return Decision{Source: primary, Target: secondary, Method: MethodProbe}
	}
	return Decision{
		Source:      secondary,
		Target:      primary,
		Method:      MethodProbe,
		ProbeResult: probed,
	}
}

// unchanged reports whether the probe output is the same text modulo casing,
// surrounding space and minor character-level drift.
func (r *Resolver) unchanged(original, probed string) bool {
	a := fold(original)
	b := fold(probed)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}

	dist := matchr.Levenshtein(a, b)
	longest := max(len([]rune(a)), len([]rune(b)))
	similarity := 1 - float64(dist)/float64(longest)
	return similarity >= r.threshold
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
