// Command learnliko is the conversation-practice server for the Learnliko
// language-learning app.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Bualoitech/learnliko/internal/config"
	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/engine"
	"github.com/Bualoitech/learnliko/internal/conversation/feed"
	"github.com/Bualoitech/learnliko/internal/conversation/recap"
	"github.com/Bualoitech/learnliko/internal/health"
	"github.com/Bualoitech/learnliko/internal/httpapi"
	"github.com/Bualoitech/learnliko/internal/observe"
	"github.com/Bualoitech/learnliko/internal/vocab"
	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	assessllm "github.com/Bualoitech/learnliko/pkg/provider/assess/llm"
	"github.com/Bualoitech/learnliko/pkg/provider/chat"
	"github.com/Bualoitech/learnliko/pkg/provider/chat/anyllm"
	"github.com/Bualoitech/learnliko/pkg/provider/simplify"
	speechoai "github.com/Bualoitech/learnliko/pkg/provider/speech/openai"
	"github.com/Bualoitech/learnliko/pkg/recapstore"
	recapmock "github.com/Bualoitech/learnliko/pkg/recapstore/mock"
	recappg "github.com/Bualoitech/learnliko/pkg/recapstore/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "learnliko: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "learnliko: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("learnliko starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "learnliko",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	chatProvider, err := buildChatProvider(cfg.Providers.Chat)
	if err != nil {
		slog.Error("failed to build chat provider", "err", err)
		return 1
	}
	speechProvider, err := speechoai.New(cfg.Providers.Speech.APIKey,
		speechOptions(cfg.Providers.Speech)...)
	if err != nil {
		slog.Error("failed to build speech provider", "err", err)
		return 1
	}
	analyzer := assessllm.New(chatProvider)
	simplifier := simplify.NewChat(chatProvider)

	// ── Recap store ───────────────────────────────────────────────────────────
	var store recapstore.Store
	var probes []health.Probe
	if cfg.Database.PostgresDSN != "" {
		pg, err := recappg.NewStore(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect recap store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		probes = append(probes, health.Probe{Name: "database", Check: pg.Ping})
		slog.Info("recap store connected")
	} else {
		// No DSN: recaps stay in memory and are lost on restart.
		store = &recapmock.Store{}
		slog.Warn("no postgres_dsn configured, recaps will not be persisted")
	}

	// ── Core assembly ─────────────────────────────────────────────────────────
	eventFeed := feed.New()
	recaps, err := recap.NewComputer(recap.ComputerConfig{
		Scorer:  analyzer,
		Store:   store,
		Feed:    eventFeed,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		slog.Error("failed to build recap computer", "err", err)
		return 1
	}

	factory := engineFactory(cfg, chatProvider, speechProvider, simplifier, analyzer, recaps, eventFeed, metrics, logger)

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		NewEngine: factory,
		Recaps:    recaps,
		Feed:      eventFeed,
		Health:    health.New(probes...),
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// version is stamped via -ldflags at release time.
var version = "dev"

// engineFactory builds one engine per new conversation, applying the
// server-wide conversation defaults where the request leaves fields unset.
func engineFactory(
	cfg *config.Config,
	chatProvider chat.Provider,
	speechProvider *speechoai.Provider,
	simplifier simplify.Simplifier,
	checker assess.ProgressChecker,
	recaps *recap.Computer,
	eventFeed *feed.Feed,
	metrics *observe.Metrics,
	logger *slog.Logger,
) httpapi.EngineFactory {
	return func(sessCfg conversation.SessionConfig) (*engine.Engine, error) {
		if sessCfg.MaxDialogueCount <= 0 {
			sessCfg.MaxDialogueCount = cfg.Conversation.MaxDialogueCount
		}
		if sessCfg.Level == "" {
			sessCfg.Level = conversation.Level(cfg.Conversation.DefaultLevel)
		}
		if sessCfg.Persist && cfg.Database.PostgresDSN == "" {
			slog.Warn("session requests persistence but no database is configured")
		}

		var corrector *vocab.Corrector
		if len(sessCfg.Vocabulary) > 0 {
			corrector = vocab.New(sessCfg.Vocabulary)
		}

		return engine.New(engine.Config{
			Session:     conversation.NewSession(sessCfg),
			Chat:        chatProvider,
			Synthesizer: speechProvider,
			Transcriber: speechProvider,
			Simplifier:  simplifier,
			Checker:     checker,
			Recap:       recaps,
			Corrector:   corrector,
			Feed:        eventFeed,
			Metrics:     metrics,
			Logger:      logger,
		})
	}
}

// buildChatProvider constructs the configured chat backend.
func buildChatProvider(cfg config.ChatProviderConfig) (chat.Provider, error) {
	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(cfg.Provider, cfg.Model, opts...)
}

// speechOptions translates the speech config into provider options.
func speechOptions(cfg config.SpeechProviderConfig) []speechoai.Option {
	var opts []speechoai.Option
	if cfg.BaseURL != "" {
		opts = append(opts, speechoai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TTSModel != "" {
		opts = append(opts, speechoai.WithTTSModel(cfg.TTSModel))
	}
	if cfg.STTModel != "" {
		opts = append(opts, speechoai.WithSTTModel(cfg.STTModel))
	}
	return opts
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}))
}
