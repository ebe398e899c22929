package config

// Defaults returns the baseline configuration both binaries start from.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:                  ":8443",
			HeartbeatTimeoutSeconds: 30,
			SweepIntervalSeconds:    15,
			GraceSeconds:            15,
			QueueCapacity:           64,
			ReportBuffer:            100,
			LogLevel:                "info",
		},
		Store: StoreConfig{
			Enabled:       true,
			DBPath:        "~/.relayhub/history.db",
			RetentionDays: 30,
		},
		Frontend: FrontendConfig{
			BackendURL:               "http://127.0.0.1:8443",
			Platform:                 "telegram",
			HeartbeatIntervalSeconds: 10,
			ReconnectIntervalSeconds: 10,
			LogLevel:                 "info",
		},
	}
}
