package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per concern. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"translate": {"llm", "googleweb"},
	"stt":       {"cloud", "local"},
	"tts":       {"silero", "googleweb"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in the zero-value fields whose documented defaults are
// consumed directly rather than interpreted downstream.
func applyDefaults(cfg *Config) {
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.PurgeSchedule == "" {
		cfg.Cache.PurgeSchedule = "0 * * * *"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.WorkerLimit < 0 {
		errs = append(errs, fmt.Errorf("telegram.worker_limit %d must not be negative", cfg.Telegram.WorkerLimit))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.Providers.Translate) == 0 {
		errs = append(errs, errors.New("providers.translate must list at least one tier"))
	}
	errs = append(errs, validateTiers("translate", cfg.Providers.Translate)...)
	errs = append(errs, validateTiers("stt", cfg.Providers.STT)...)
	errs = append(errs, validateTiers("tts", cfg.Providers.TTS)...)

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; using the in-memory store, all chat state is lost on restart")
	}

	if t := cfg.Direction.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("direction.similarity_threshold %.2f is out of range [0, 1]", t))
	}

	if cfg.Cleaner.DefaultCount < 0 || cfg.Cleaner.MaxCount < 0 || cfg.Cleaner.ScanLimit < 0 {
		errs = append(errs, errors.New("cleaner limits must not be negative"))
	}
	if cfg.Cleaner.MaxCount > 0 && cfg.Cleaner.DefaultCount > cfg.Cleaner.MaxCount {
		errs = append(errs, fmt.Errorf("cleaner.default_count %d exceeds cleaner.max_count %d", cfg.Cleaner.DefaultCount, cfg.Cleaner.MaxCount))
	}

	if cfg.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	return errors.Join(errs...)
}

// validateTiers checks one provider list: duplicate tier names are errors,
// unknown names get a warning, and per-implementation required fields are
// enforced.
func validateTiers(kind string, tiers []ProviderEntry) []error {
	var errs []error
	seen := make(map[string]int, len(tiers))

	for i, tier := range tiers {
		prefix := fmt.Sprintf("providers.%s[%d]", kind, i)
		if tier.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[tier.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.%s[%d]", prefix, tier.Name, kind, prev))
		}
		seen[tier.Name] = i

		if known, ok := ValidProviderNames[kind]; ok && !slices.Contains(known, tier.Name) {
			slog.Warn("unknown provider name — may be a typo",
				"kind", kind, "name", tier.Name, "known", known)
		}

		switch {
		case kind == "translate" && tier.Name == "llm" && tier.Model == "":
			errs = append(errs, fmt.Errorf("%s.model is required for the llm tier", prefix))
		case kind == "stt" && tier.Name == "cloud" && tier.APIKey == "":
			errs = append(errs, fmt.Errorf("%s.api_key is required for the cloud tier", prefix))
		case kind == "stt" && tier.Name == "local" && tier.ModelPath == "":
			errs = append(errs, fmt.Errorf("%s.model_path is required for the local tier", prefix))
		case kind == "tts" && tier.Name == "silero" && tier.BaseURL == "":
			errs = append(errs, fmt.Errorf("%s.base_url is required for the silero tier", prefix))
		}
	}
	return errs
}
