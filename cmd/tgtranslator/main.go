// Command tgtranslator runs the Telegram translation assistant: the bot
// itself, the sidecar HTTP API, the Prometheus endpoint, and the scheduled
// pending-cache purge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/hitromudr/tg-translator/internal/api"
	"github.com/hitromudr/tg-translator/internal/config"
	"github.com/hitromudr/tg-translator/internal/direction"
	"github.com/hitromudr/tg-translator/internal/health"
	"github.com/hitromudr/tg-translator/internal/observe"
	"github.com/hitromudr/tg-translator/internal/resilience"
	"github.com/hitromudr/tg-translator/internal/speech"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/internal/store/postgres"
	"github.com/hitromudr/tg-translator/internal/telegram"
	"github.com/hitromudr/tg-translator/internal/translate"
	"github.com/hitromudr/tg-translator/pkg/provider/stt"
	sttcloud "github.com/hitromudr/tg-translator/pkg/provider/stt/cloud"
	sttlocal "github.com/hitromudr/tg-translator/pkg/provider/stt/local"
	translateprovider "github.com/hitromudr/tg-translator/pkg/provider/translate"
	translategoogle "github.com/hitromudr/tg-translator/pkg/provider/translate/googleweb"
	translatellm "github.com/hitromudr/tg-translator/pkg/provider/translate/llm"
	"github.com/hitromudr/tg-translator/pkg/provider/tts"
	ttsgoogle "github.com/hitromudr/tg-translator/pkg/provider/tts/googleweb"
	ttssilero "github.com/hitromudr/tg-translator/pkg/provider/tts/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tgtranslator: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tgtranslator: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("tgtranslator starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Store ─────────────────────────────────────────────────────────────────
	var (
		st       store.Store
		checkers []health.Checker
	)
	if cfg.Storage.PostgresDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to open postgres store", "err", err)
			return 1
		}
		defer pg.Close()
		st = pg
		checkers = append(checkers, health.Checker{Name: "database", Check: pg.Ping})
		slog.Info("using postgres store")
	} else {
		st = store.NewMemStore()
		slog.Warn("no postgres_dsn configured, state is kept in memory only")
	}

	// ── Provider chains ───────────────────────────────────────────────────────
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Warn("provider close error", "err", err)
			}
		}
	}()

	fallbackCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
		TierTimeout: cfg.Resilience.TierTimeout,
	}

	translateGroup, err := buildTranslateGroup(cfg.Providers.Translate, fallbackCfg)
	if err != nil {
		slog.Error("failed to build translation providers", "err", err)
		return 1
	}
	sttGroup, err := buildSTTGroup(cfg.Providers.STT, fallbackCfg, &closers)
	if err != nil {
		slog.Error("failed to build transcription providers", "err", err)
		return 1
	}
	ttsGroup, err := buildTTSGroup(cfg.Providers.TTS, fallbackCfg)
	if err != nil {
		slog.Error("failed to build synthesis providers", "err", err)
		return 1
	}

	// ── Pipelines ─────────────────────────────────────────────────────────────
	var translateOpts []translate.Option
	if cfg.Direction.SimilarityThreshold > 0 {
		translateOpts = append(translateOpts, translate.WithResolverOptions(
			direction.WithSimilarityThreshold(cfg.Direction.SimilarityThreshold)))
	}
	translator := translate.NewPipeline(st, translateGroup, translateOpts...)

	var speechPipe *speech.Pipeline
	if sttGroup.Len() > 0 || ttsGroup.Len() > 0 {
		speechPipe = speech.NewPipeline(sttGroup, ttsGroup)
	}

	// ── Telegram bot ──────────────────────────────────────────────────────────
	bot, client, err := telegram.New(cfg.Telegram.Token, st, translator, speechPipe,
		telegram.WithWorkerLimit(cfg.Telegram.WorkerLimit),
		telegram.WithCleanerLimits(telegram.CleanerLimits{
			DefaultCount: cfg.Cleaner.DefaultCount,
			MaxCount:     cfg.Cleaner.MaxCount,
			ScanLimit:    cfg.Cleaner.ScanLimit,
		}),
	)
	if err != nil {
		slog.Error("failed to connect to Telegram", "err", err)
		return 1
	}
	go bot.Run(ctx, client)

	// ── Scheduled cache purge ─────────────────────────────────────────────────
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Cache.PurgeSchedule, func() {
		pctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := st.Purge(pctx, cfg.Cache.TTL)
		if err != nil {
			slog.Error("pending cache purge failed", "err", err)
			return
		}
		if removed > 0 {
			slog.Info("pending cache purged", "removed", removed)
		}
	})
	if err != nil {
		slog.Error("invalid purge schedule", "schedule", cfg.Cache.PurgeSchedule, "err", err)
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	// ── HTTP servers ──────────────────────────────────────────────────────────
	var servers []*http.Server

	if cfg.Server.ListenAddr != "" {
		apiServer := api.New(st, translator, speechPipe,
			api.WithHealth(health.New(checkers...)))
		servers = append(servers, serveHTTP(cfg.Server.ListenAddr, apiServer.Handler(), "api"))
	}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		servers = append(servers, serveHTTP(cfg.Server.MetricsAddr, mux, "metrics"))
	}

	slog.Info("tgtranslator ready — press Ctrl+C to shut down")
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "addr", srv.Addr, "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// serveHTTP starts an HTTP server in a goroutine and returns it for shutdown.
func serveHTTP(addr string, handler http.Handler, name string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server listening", "name", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "name", name, "err", err)
		}
	}()
	return srv
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildTranslateGroup(entries []config.ProviderEntry, cfg resilience.FallbackConfig) (*resilience.FallbackGroup[translateprovider.Provider], error) {
	group := resilience.NewFallbackGroup[translateprovider.Provider](cfg)
	for _, entry := range entries {
		switch entry.Name {
		case "llm":
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			backend := entry.Backend
			if backend == "" {
				backend = "groq"
			}
			p, err := translatellm.New(backend, entry.Model, opts...)
			if err != nil {
				return nil, fmt.Errorf("create llm translator: %w", err)
			}
			group.AddTier(entry.Name, p)
		case "googleweb":
			var opts []translategoogle.Option
			if entry.BaseURL != "" {
				opts = append(opts, translategoogle.WithBaseURL(entry.BaseURL))
			}
			group.AddTier(entry.Name, translategoogle.New(opts...))
		default:
			return nil, fmt.Errorf("unknown translate provider %q", entry.Name)
		}
		slog.Info("provider tier added", "kind", "translate", "name", entry.Name)
	}
	return group, nil
}

func buildSTTGroup(entries []config.ProviderEntry, cfg resilience.FallbackConfig, closers *[]io.Closer) (*resilience.FallbackGroup[stt.Provider], error) {
	group := resilience.NewFallbackGroup[stt.Provider](cfg)
	for _, entry := range entries {
		switch entry.Name {
		case "cloud":
			var opts []sttcloud.Option
			if entry.BaseURL != "" {
				opts = append(opts, sttcloud.WithBaseURL(entry.BaseURL))
			}
			if entry.Model != "" {
				opts = append(opts, sttcloud.WithModel(entry.Model))
			}
			p, err := sttcloud.New(entry.APIKey, opts...)
			if err != nil {
				return nil, fmt.Errorf("create cloud transcriber: %w", err)
			}
			group.AddTier(entry.Name, p)
		case "local":
			p, err := sttlocal.New(entry.ModelPath)
			if err != nil {
				return nil, fmt.Errorf("create local transcriber: %w", err)
			}
			*closers = append(*closers, p)
			group.AddTier(entry.Name, p)
		default:
			return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
		}
		slog.Info("provider tier added", "kind", "stt", "name", entry.Name)
	}
	return group, nil
}

func buildTTSGroup(entries []config.ProviderEntry, cfg resilience.FallbackConfig) (*resilience.FallbackGroup[tts.Provider], error) {
	group := resilience.NewFallbackGroup[tts.Provider](cfg)
	for _, entry := range entries {
		switch entry.Name {
		case "silero":
			p, err := ttssilero.New(entry.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("create silero synthesizer: %w", err)
			}
			group.AddTier(entry.Name, p)
		case "googleweb":
			var opts []ttsgoogle.Option
			if entry.BaseURL != "" {
				opts = append(opts, ttsgoogle.WithBaseURL(entry.BaseURL))
			}
			group.AddTier(entry.Name, ttsgoogle.New(opts...))
		default:
			return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
		}
		slog.Info("provider tier added", "kind", "tts", "name", entry.Name)
	}
	return group, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
