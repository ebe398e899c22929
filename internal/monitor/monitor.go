// Package monitor detects silent frontend disconnects. A periodic sweep
// marks connections Stale once their last_seen exceeds the heartbeat timeout
// and evicts them after one further grace period, closing their command
// stream with an explicit evicted reason.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"relayhub/internal/domain"
	"relayhub/internal/metrics"
	"relayhub/internal/registry"
)

// Config sets the sweep timing. Zero values fall back to defaults.
type Config struct {
	// HeartbeatTimeout is how long a connection may stay silent before it
	// is marked Stale.
	HeartbeatTimeout time.Duration

	// SweepInterval is how often the sweep runs. Defaults to half the
	// heartbeat timeout.
	SweepInterval time.Duration

	// Grace is the extra period a Stale connection gets before eviction,
	// to absorb a heartbeat already in flight. Defaults to SweepInterval.
	Grace time.Duration

	Logger *slog.Logger
}

// Monitor runs the staleness sweep over a Registry.
type Monitor struct {
	reg      *registry.Registry
	timeout  time.Duration
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger

	now func() time.Time
}

func New(reg *registry.Registry, cfg Config) *Monitor {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.HeartbeatTimeout / 2
	}
	if cfg.Grace <= 0 {
		cfg.Grace = cfg.SweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		reg:      reg,
		timeout:  cfg.HeartbeatTimeout,
		interval: cfg.SweepInterval,
		grace:    cfg.Grace,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Start runs the sweep loop. Blocks until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("heartbeat monitor started",
		"timeout", m.timeout,
		"interval", m.interval,
		"grace", m.grace,
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep scans the registry once. It only touches registry state and closes
// senders; both are non-blocking, so the sweep never stalls behind a slow
// connection's outbound delivery.
func (m *Monitor) Sweep() {
	now := m.now()
	staleCutoff := now.Add(-m.timeout)
	evictCutoff := now.Add(-(m.timeout + m.grace))

	for _, e := range m.reg.Snapshot() {
		switch e.State {
		case registry.StateActive, registry.StateRegistered:
			// Re-checked under the registry lock: a heartbeat racing
			// the sweep keeps the entry Active.
			m.reg.MarkStale(e.ID, staleCutoff)
		case registry.StateStale:
			sender, ok := m.reg.EvictExpired(e.ID, evictCutoff)
			if !ok {
				continue
			}
			if sender != nil {
				sender.Close(domain.CloseEvicted)
			}
			metrics.Evictions.Inc()
		}
	}
}

// SetClock overrides the time source. Test hook.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }
