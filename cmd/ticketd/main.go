// Ticketd processes support tickets over HTTP.
//
// Tickets run in-process by default. With temporal.enabled they run as
// durable workflows, and ticketd also hosts a worker for its task queue so
// the status endpoint sees the updates it makes.
//
// Configuration is read from an optional YAML file and TICKETD_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	ticketd
//
//	# Start from a config file, overriding the port
//	TICKETD_SERVER_HTTP_PORT=9090 ticketd --config /etc/ticketd.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ticketd/internal/config"
	ihttp "github.com/fyrsmithlabs/ticketd/internal/http"
	"github.com/fyrsmithlabs/ticketd/internal/logging"
	"github.com/fyrsmithlabs/ticketd/internal/services"
	"github.com/fyrsmithlabs/ticketd/internal/telemetry"
	"github.com/fyrsmithlabs/ticketd/internal/workflows"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ticketd [--config file]   Start the ticket service\n")
			fmt.Fprintf(os.Stderr, "  ticketd version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ticketd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("ticketd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run serves until ctx is cancelled, then shuts down within the configured
// timeout.
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

	logger.Info(ctx, "starting ticketd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("temporal", cfg.Temporal.Enabled),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("problems", h.Problems))
	}

	reg, err := services.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(context.Background(), "failed to close services", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var processor ihttp.Processor = reg.Orchestrator()
	if cfg.Temporal.Enabled {
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
		g.Go(func() error {
			if err := w.Start(); err != nil {
				return fmt.Errorf("starting worker: %w", err)
			}
			<-gctx.Done()
			w.Stop()
			return nil
		})
		processor = workflows.NewProcessor(c, cfg.Temporal.TaskQueue)
	}

	srv, err := ihttp.NewServer(processor, reg.Status(), logger, &ihttp.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})
	if err != nil {
		return err
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info(context.Background(), "ticketd stopped")
	return nil
}
