package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"relayhub/internal/client"
	"relayhub/internal/config"
	"relayhub/internal/domain"
	"relayhub/internal/platform"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "relayfrontend",
		Short:   "relayfrontend: one chat-platform connection bridged to a relay hub",
		Long:    "relayfrontend runs a single platform adapter (Telegram or Discord), reports its messages to the hub, and executes commands streamed back.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.relayhub/config.yaml)")

	root.AddCommand(runCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect the platform adapter to the hub",
		RunE:  runFrontend,
	}
}

func runFrontend(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = "~/.relayhub/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fcfg := cfg.Frontend

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(fcfg.LogLevel),
	}))

	adapter, err := buildAdapter(fcfg)
	if err != nil {
		return err
	}

	frontendID := fcfg.FrontendID
	if frontendID == "" {
		frontendID = adapter.Name() + "-" + uuid.NewString()[:8]
		logger.Info("generated frontend id", "frontend_id", frontendID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := client.New(fcfg.BackendURL, frontendID, adapter.Platform(), logger)

	handler := func(ctx context.Context, cmd domain.BotCommand) {
		if err := adapter.Execute(ctx, cmd); err != nil {
			logger.Error("command execution failed",
				"command_id", cmd.CommandID,
				"command_type", cmd.CommandType,
				"err", err,
			)
		}
	}

	manager := client.NewConnManager(backend, handler, client.ConnManagerConfig{
		HeartbeatInterval: fcfg.HeartbeatInterval(),
		ReconnectInterval: fcfg.ReconnectInterval(),
		Logger:            logger,
	})

	sink := func(msg domain.BotMessage) {
		if _, err := backend.Report(ctx, msg); err != nil {
			logger.Warn("message report failed", "event_id", msg.EventID, "err", err)
		}
	}

	adapterErr := make(chan error, 1)
	go func() {
		adapterErr <- adapter.Start(ctx, sink)
	}()

	managerErr := make(chan error, 1)
	go func() {
		managerErr <- manager.Run(ctx)
	}()

	logger.Info("frontend started",
		"frontend_id", frontendID,
		"platform", adapter.Platform(),
		"backend", fcfg.BackendURL,
	)

	select {
	case err := <-adapterErr:
		stop()
		if err != nil {
			return fmt.Errorf("adapter: %w", err)
		}
		return nil
	case err := <-managerErr:
		stop()
		if err != nil && err != context.Canceled {
			return fmt.Errorf("backend connection: %w", err)
		}
		return nil
	}
}

func buildAdapter(fcfg config.FrontendConfig) (domain.Adapter, error) {
	p, err := domain.ParsePlatform(fcfg.Platform)
	if err != nil {
		return nil, err
	}
	switch p {
	case domain.PlatformTelegram:
		if fcfg.Telegram.Token == "" {
			return nil, fmt.Errorf("telegram token not configured")
		}
		return platform.NewTelegram(platform.TelegramOptions{
			Token:  fcfg.Telegram.Token,
			Logger: logger,
		}), nil
	case domain.PlatformDiscord:
		if fcfg.Discord.Token == "" {
			return nil, fmt.Errorf("discord token not configured")
		}
		return platform.NewDiscord(platform.DiscordOptions{
			Token:  fcfg.Discord.Token,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("no adapter for platform %q", fcfg.Platform)
	}
}
