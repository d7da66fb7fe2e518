// Command wikipath runs the HTTP API server. It accepts search
// submissions, serves task status, explore, cache admin, and health
// endpoints. Searches themselves run on wikipath-worker processes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	wphttp "github.com/wikirace/wikipath/internal/adapter/http"
	wpnats "github.com/wikirace/wikipath/internal/adapter/nats"
	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/logger"
	"github.com/wikirace/wikipath/internal/middleware"
	"github.com/wikirace/wikipath/internal/service"
	"github.com/wikirace/wikipath/internal/worker"
)

func main() {
	// Temporary bootstrap logger until config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Replace bootstrap logger with the configured one.
	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"redis_url", cfg.Redis.URL,
		"nats_url", cfg.NATS.URL,
	)

	ctx := context.Background()

	// --- Infrastructure ---
	factory := service.NewFactory(cfg)
	defer factory.Teardown()

	store, err := factory.Store(ctx)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	broker, err := wpnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	exploreSvc, err := factory.ExploreService(ctx)
	if err != nil {
		return fmt.Errorf("explore service: %w", err)
	}

	// --- HTTP ---
	handlers := &wphttp.Handlers{
		Explore: exploreSvc,
		Records: worker.NewTaskStore(store, cfg.Tasks.ResultTTL),
		Broker:  broker,
		Store:   store,
	}

	r := chi.NewRouter()
	r.Use(wphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(wphttp.Logger)
	r.Use(wphttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	wphttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done

	// --- Ordered graceful shutdown ---
	slog.Info("shutdown: stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown: draining broker")
	if err := broker.Drain(); err != nil {
		slog.Error("broker drain error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
