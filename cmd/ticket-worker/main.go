// Ticket-worker hosts the ticket workflow and its activities on a Temporal
// task queue.
//
// Each worker builds its own activity stack from configuration. Run workers
// against a shared idempotency store (sqlite on shared storage, postgres or
// redis) so a retried activity on another worker replays the recorded
// outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ticketd/internal/config"
	"github.com/fyrsmithlabs/ticketd/internal/logging"
	"github.com/fyrsmithlabs/ticketd/internal/services"
	"github.com/fyrsmithlabs/ticketd/internal/telemetry"
	"github.com/fyrsmithlabs/ticketd/internal/workflows"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ticket-worker: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := logging.NewFromService(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Store.Backend == config.StoreMemory {
		logger.Warn(ctx, "memory idempotency store is not shared between workers")
	}

	reg, err := services.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger.Temporal(),
	})
	if err != nil {
		return fmt.Errorf("connecting to temporal at %s: %w", cfg.Temporal.HostPort, err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, reg.Activities())

	logger.Info(ctx, "starting ticket worker",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.Any("components", reg.Components()),
	)

	if err := w.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	<-ctx.Done()
	w.Stop()

	logger.Info(context.Background(), "ticket worker stopped")
	return nil
}
