package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"relayhub/internal/bus"
	"relayhub/internal/config"
	"relayhub/internal/dispatch"
	"relayhub/internal/ingest"
	"relayhub/internal/monitor"
	"relayhub/internal/registry"
	"relayhub/internal/server"
	"relayhub/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay hub",
		Long:  "Starts the hub server: frontend subscriptions, report/heartbeat ingest, staleness sweep, and the admin dispatch endpoint. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.Server.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportBus := bus.New(cfg.Server.ReportBuffer, logger)
	defer reportBus.Close()

	var history *store.SQLiteStore
	if cfg.Store.Enabled {
		history, err = store.NewSQLiteStore(config.ExpandPath(cfg.Store.DBPath), logger)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer history.Close()
		logger.Info("history store opened", "path", cfg.Store.DBPath)
	}

	reg := registry.New(logger)
	disp := dispatch.New(reg, logger)
	router := ingest.New(reg, reportBus, logger)

	mon := monitor.New(reg, monitor.Config{
		HeartbeatTimeout: cfg.Server.HeartbeatTimeout(),
		SweepInterval:    cfg.Server.SweepInterval(),
		Grace:            cfg.Server.Grace(),
		Logger:           logger,
	})
	go mon.Start(ctx)

	go consumeReports(ctx, reportBus, history)

	if history != nil {
		go pruneLoop(ctx, history, cfg.Store.RetentionDays)
	}

	srv := server.New(reg, disp, router, server.Config{
		Listen:        cfg.Server.Listen,
		QueueCapacity: cfg.Server.QueueCapacity,
		Logger:        logger,
		Recorder:      recorder(history),
	})

	logger.Info("relay hub starting. Press Ctrl+C to stop.")
	return srv.Start(ctx)
}

// recorder keeps the untyped-nil-interface pitfall out of server.Config.
func recorder(history *store.SQLiteStore) server.CommandRecorder {
	if history == nil {
		return nil
	}
	return history
}

// consumeReports is the hub's downstream consumer: it drains the report bus
// into the history store. Replace or extend this to hand reports to real
// message handlers.
func consumeReports(ctx context.Context, reportBus *bus.InMemoryBus, history *store.SQLiteStore) {
	for msg := range reportBus.Subscribe() {
		if history == nil {
			continue
		}
		if err := history.RecordReport(ctx, msg); err != nil {
			logger.Warn("report record failed", "event_id", msg.EventID, "err", err)
		}
	}
}

func pruneLoop(ctx context.Context, history *store.SQLiteStore, retentionDays int) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := history.Prune(ctx, retentionDays); err != nil {
				logger.Warn("history prune failed", "err", err)
			}
		}
	}
}
