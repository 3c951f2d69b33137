// Command syncd runs the aggregator sync daemon: the periodic scheduler,
// the optional Postgres sync listener and the ops HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	opshttp "finsync/internal/interfaces/http"
	"finsync/internal/shared/config"
	"finsync/internal/shared/logger"
	"finsync/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "syncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		providers, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
			SampleRatio:    cfg.Telemetry.SampleRatio,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("telemetry shutdown")
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	var status opshttp.StatusProvider
	if deps.Scheduler != nil {
		deps.Scheduler.Start()
		status = deps.Scheduler
	} else {
		log.Info().Msg("scheduler is disabled")
	}

	if deps.Listener != nil {
		deps.Listener.Start(context.Background())
	}

	router := opshttp.NewRouter(opshttp.NewOpsHandler(status), log)
	srv, srvErr := StartServer(cfg.Server.Host+":"+cfg.Server.Port, router, log)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-srvErr:
		log.Error().Err(serveErr).Msg("ops server failed")
	}

	GracefulShutdown(srv, deps.Scheduler, deps.Listener, shutdownTimeout, log)
	return serveErr
}
