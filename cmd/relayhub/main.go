package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "relayhub",
		Short:   "relayhub: chat-frontend connection registry and command dispatch hub",
		Long:    "relayhub tracks connected chat-platform frontends, ingests their message reports and heartbeats, and streams commands back to them.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.relayhub/config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(dispatchCmd())
	root.AddCommand(frontendsCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return "~/.relayhub/config.yaml"
}
