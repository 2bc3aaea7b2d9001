// Package main is the entry point for the Concierge gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concierge-ai/concierge/internal/agent"
	"github.com/concierge-ai/concierge/internal/auth"
	"github.com/concierge-ai/concierge/internal/config"
	"github.com/concierge-ai/concierge/internal/event"
	"github.com/concierge-ai/concierge/internal/gateway"
	"github.com/concierge-ai/concierge/internal/httpclient"
	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/internal/provider"
	"github.com/concierge-ai/concierge/internal/server"
	"github.com/concierge-ai/concierge/internal/store"
	"github.com/concierge-ai/concierge/internal/title"
	"github.com/concierge-ai/concierge/internal/tool"
)

var (
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	configPath = flag.String("config", "", "Path to config file")
	logLevel   = flag.String("log-level", "", "Log level (overrides config)")
	logPretty  = flag.Bool("log-pretty", false, "Human-readable log output")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("concierge-server %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logPretty {
		cfg.LogPretty = true
	}

	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Pretty: cfg.LogPretty})
	logging.Info().Str("version", Version).Str("addr", cfg.Addr).Msg("starting concierge server")

	ctx := context.Background()

	chatModel, err := provider.NewChatModel(ctx, provider.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create chat model")
	}

	storeClient := store.New(cfg.StoreURL, cfg.StoreKey)
	sessions := store.NewSessionStore(storeClient)
	messages := store.NewMessageStore(storeClient)

	backend := httpclient.New(cfg.BackendURL)
	tools := tool.Default(backend)
	runtime := agent.New(chatModel, tools)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	bus := event.NewBus()
	registry := gateway.NewRegistry()
	translator := gateway.NewTranslator(registry, tools, cfg.ChunkDelay)
	orch := gateway.NewOrchestrator(sessions, messages, runtime,
		title.NewSummarizer(chatModel), bus, registry, translator)
	ws := gateway.NewHandler(verifier, orch, registry, bus)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = cfg.Addr
	serverCfg.EnableCORS = cfg.EnableCORS
	srv := server.New(serverCfg, verifier, runtime, sessions, messages, ws)

	go func() {
		logging.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	// Title and persistence tasks are best-effort: give them a short grace
	// period, then warn instead of blocking shutdown on them.
	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.Warn().Msg("background tasks still outstanding at shutdown, abandoning")
	}

	_ = bus.Close()
	logging.Info().Msg("server stopped")
}
