// Command wikipath-worker runs the background search worker. It consumes
// pathfinding jobs from the broker, drives the BFS engine, persists task
// state, and runs periodic housekeeping.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	wpnats "github.com/wikirace/wikipath/internal/adapter/nats"
	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/logger"
	"github.com/wikirace/wikipath/internal/service"
	"github.com/wikirace/wikipath/internal/worker"
)

func main() {
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

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("worker starting",
		"redis_url", cfg.Redis.URL,
		"nats_url", cfg.NATS.URL,
		"soft_time_limit", cfg.Tasks.SoftTimeLimit,
		"hard_time_limit", cfg.Tasks.HardTimeLimit,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

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

	records := worker.NewTaskStore(store, cfg.Tasks.ResultTTL)
	runner := worker.NewRunner(broker, records, factory, cfg.Tasks)

	cancelJobs, err := runner.Start(ctx)
	if err != nil {
		return fmt.Errorf("job subscriber: %w", err)
	}

	housekeeper := worker.NewHousekeeper(store)
	if err := housekeeper.Start(); err != nil {
		return fmt.Errorf("housekeeping: %w", err)
	}

	slog.Info("worker ready")

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	// --- Ordered graceful shutdown ---
	slog.Info("shutdown: stopping job consumption")
	cancelJobs()
	stop()

	slog.Info("shutdown: stopping housekeeping")
	housekeeper.Stop()

	slog.Info("shutdown: draining broker")
	if err := broker.Drain(); err != nil {
		slog.Error("broker drain error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
