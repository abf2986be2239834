// Command server starts the Vigil simulation API.
//
// Usage:
//
//	go run ./cmd/server [flags]
//
// Flags:
//
//	-addr    HTTP listen address (default: :8080)
//	-config  Path to the simulation YAML config (default: configs/vigil.yaml)
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vigil/sim-api/internal/api"
	"vigil/sim-api/internal/config"
	"vigil/sim-api/internal/engine"
	"vigil/sim-api/internal/webhook"
)

func main() {
	// A .env file is optional; it only matters in local development.
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/vigil.yaml", "path to simulation YAML config")
	flag.Parse()

	// PaaS platforms inject PORT as an env var; it takes precedence.
	if port := os.Getenv("PORT"); port != "" {
		*addr = ":" + port
	}

	// Structured logging — key-value text records on stdout.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Load config ───────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", *cfgPath, "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	slog.Info("config loaded",
		"path", *cfgPath,
		"users", len(cfg.Users),
		"reasons", len(cfg.RiskReasons),
		"categories", len(cfg.Categories),
	)

	// ── Wire dependencies ─────────────────────────────────────────────────────
	eng, err := engine.New(engine.Config{
		Users:      cfg.Users,
		Categories: cfg.Categories,
		Reasons:    cfg.RiskReasons,
		Tuning:     cfg.EngineTuning(),
	})
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	notifier := webhook.New()
	go notifier.Consume(eng.Subscribe())

	handler := api.NewHandler(eng, notifier)
	router := api.NewRouter(handler)

	// ── Hot-reload watcher (tuning only) ──────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := eng.Retune(newCfg.EngineTuning()); err != nil {
			slog.Warn("hot-reload skipped: tuning invalid", "error", err)
			return
		}
		slog.Info("tuning hot-reloaded",
			"tick_min_ms", newCfg.Tuning.TickMinMs,
			"tick_max_ms", newCfg.Tuning.TickMaxMs,
			"risk_chance", *newCfg.Tuning.RiskChance,
		)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "error", err)
	} else {
		defer stopWatch()
	}

	// ── Start simulation + HTTP server ────────────────────────────────────────
	eng.Start()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	eng.Stop()
	slog.Info("engine stopped")
}
