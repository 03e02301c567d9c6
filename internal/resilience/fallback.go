package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllProvidersExhausted is returned when every tier in a [FallbackGroup]
// fails or has an open circuit breaker.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// FallbackConfig configures a [FallbackGroup] and the per-tier circuit
// breaker created for each of its providers.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// TierTimeout bounds each individual tier attempt. Zero means the caller's
	// context deadline is the only bound.
	TierTimeout time.Duration

	// Logger receives skip and failover records. Defaults to [slog.Default].
	Logger *slog.Logger
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable providers (tiers).
// An operation is tried against each healthy tier in registration order until
// one succeeds; tiers with an open circuit breaker are skipped. The name of
// the tier that served a request is reported back to the caller so responses
// can be marked when they came from anything but the first tier.
//
// FallbackGroup is safe for concurrent use once all tiers are registered.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	log     *slog.Logger
}

// NewFallbackGroup creates an empty group. Tiers are registered with
// [FallbackGroup.AddTier] in priority order.
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &FallbackGroup[T]{cfg: cfg, log: log}
}

// AddTier appends a provider as the next (lower-priority) tier.
func (fg *FallbackGroup[T]) AddTier(name string, provider T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	cbCfg.Logger = fg.log
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   provider,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of registered tiers.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// PrimaryName returns the name of the first tier, or "" for an empty group.
func (fg *FallbackGroup[T]) PrimaryName() string {
	if len(fg.entries) == 0 {
		return ""
	}
	return fg.entries[0].name
}

// Execute tries fn against each tier in order until one succeeds and returns
// the name of the tier that served the call. Each attempt gets at most one
// call per tier; a tier is never retried within a single Execute. Returns
// [ErrAllProvidersExhausted] wrapped with the last error if every tier fails,
// and stops early when ctx is cancelled.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) (string, error) {
	var lastErr error
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fg.callTier(ctx, entry, fn)
		})
		if err == nil {
			return entry.name, nil
		}
		lastErr = err
		fg.logAttempt(ctx, entry.name, err)
	}
	if lastErr == nil {
		return "", ErrAllProvidersExhausted
	}
	return "", fmt.Errorf("%w: %v", ErrAllProvidersExhausted, lastErr)
}

func (fg *FallbackGroup[T]) callTier(ctx context.Context, entry *fallbackEntry[T], fn func(context.Context, T) error) error {
	if fg.cfg.TierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fg.cfg.TierTimeout)
		defer cancel()
	}
	return fn(ctx, entry.value)
}

func (fg *FallbackGroup[T]) logAttempt(ctx context.Context, name string, err error) {
	if errors.Is(err, ErrCircuitOpen) {
		fg.log.DebugContext(ctx, "skipping provider tier (circuit open)", "tier", name)
	} else {
		fg.log.WarnContext(ctx, "provider tier failed, trying next",
			"tier", name, "error", err)
	}
}

// ExecuteTagged tries fn against each tier in the group until one succeeds,
// returning the result value alongside the serving tier's name. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteTagged[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		result R
		zero   R
	)
	tier, err := fg.Execute(ctx, func(ctx context.Context, v T) error {
		var innerErr error
		result, innerErr = fn(ctx, v)
		return innerErr
	})
	if err != nil {
		return zero, "", err
	}
	return result, tier, nil
}
