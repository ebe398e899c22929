// Package config loads YAML configuration for the hub and frontend
// binaries. Values merge over Defaults; secrets can be supplied through
// environment variables instead of the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by both binaries; each reads the
// sections it needs.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Frontend FrontendConfig `yaml:"frontend"`
}

// ServerConfig configures the relay hub.
type ServerConfig struct {
	Listen                  string `yaml:"listen"`
	HeartbeatTimeoutSeconds int    `yaml:"heartbeatTimeoutSeconds"`
	SweepIntervalSeconds    int    `yaml:"sweepIntervalSeconds"`
	GraceSeconds            int    `yaml:"graceSeconds"`
	QueueCapacity           int    `yaml:"queueCapacity"`
	ReportBuffer            int    `yaml:"reportBuffer"`
	LogLevel                string `yaml:"logLevel"`
}

// StoreConfig configures the history store.
type StoreConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"dbPath"`
	RetentionDays int    `yaml:"retentionDays"`
}

// FrontendConfig configures one frontend process.
type FrontendConfig struct {
	BackendURL               string         `yaml:"backendUrl"`
	FrontendID               string         `yaml:"frontendId"`
	Platform                 string         `yaml:"platform"`
	HeartbeatIntervalSeconds int            `yaml:"heartbeatIntervalSeconds"`
	ReconnectIntervalSeconds int            `yaml:"reconnectIntervalSeconds"`
	LogLevel                 string         `yaml:"logLevel"`
	Telegram                 TelegramConfig `yaml:"telegram"`
	Discord                  DiscordConfig  `yaml:"discord"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

// Load reads the YAML file at path over Defaults and applies environment
// overrides. A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secrets and addresses from the environment, so config
// files never have to hold tokens.
func (c *Config) applyEnv() {
	if v := os.Getenv("RELAYHUB_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("RELAYHUB_BACKEND_URL"); v != "" {
		c.Frontend.BackendURL = v
	}
	if v := os.Getenv("RELAYHUB_FRONTEND_ID"); v != "" {
		c.Frontend.FrontendID = v
	}
	if v := os.Getenv("RELAYHUB_TELEGRAM_TOKEN"); v != "" {
		c.Frontend.Telegram.Token = v
	}
	if v := os.Getenv("RELAYHUB_DISCORD_TOKEN"); v != "" {
		c.Frontend.Discord.Token = v
	}
}

// Duration accessors: config carries plain seconds, callers want durations.

func (c *ServerConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c *ServerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *ServerConfig) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c *FrontendConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c *FrontendConfig) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSeconds) * time.Second
}

// ParseLogLevel maps a config string to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandPath resolves a leading ~ against the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ExpandPath is the exported form for callers resolving config values
// (e.g. the store's dbPath).
func ExpandPath(path string) string { return expandPath(path) }
