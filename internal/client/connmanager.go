package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"relayhub/internal/domain"
)

// ConnState is the frontend's view of its backend connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "invalid"
}

// ErrSuperseded is returned by Run when another subscription for the same
// frontend id replaced this one. Reconnecting would only steal the stream
// back and forth, so the manager stops instead.
var ErrSuperseded = errors.New("subscription superseded by another frontend instance")

// CommandHandler executes one backend command on the platform side.
type CommandHandler func(ctx context.Context, cmd domain.BotCommand)

// ConnManager keeps one frontend connected: it subscribes, heartbeats,
// hands incoming commands to the handler, and reconnects after stream loss.
type ConnManager struct {
	client            *Client
	handler           CommandHandler
	heartbeatInterval time.Duration
	reconnectInterval time.Duration
	logger            *slog.Logger

	mu    sync.Mutex
	state ConnState
}

// ConnManagerConfig bundles ConnManager construction options.
type ConnManagerConfig struct {
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	Logger            *slog.Logger
}

func NewConnManager(c *Client, handler CommandHandler, cfg ConnManagerConfig) *ConnManager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ConnManager{
		client:            c,
		handler:           handler,
		heartbeatInterval: cfg.HeartbeatInterval,
		reconnectInterval: cfg.ReconnectInterval,
		logger:            cfg.Logger,
	}
}

// State returns the current connection state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnManager) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run connects and serves the stream until ctx is cancelled or the
// subscription is superseded. Stream loss from eviction or transport failure
// triggers reconnection after the reconnect interval.
func (m *ConnManager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			m.setState(StateDisconnected)
			return err
		}

		m.setState(StateConnecting)
		sub, err := m.client.Subscribe(ctx)
		if err != nil {
			m.setState(StateDisconnected)
			m.logger.Warn("backend connection failed, will retry",
				"err", err,
				"retry_in", m.reconnectInterval,
			)
			if !m.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		m.setState(StateConnected)

		reason := m.serve(ctx, sub)
		m.setState(StateDisconnected)

		switch reason {
		case domain.CloseSuperseded:
			m.logger.Error("subscription superseded, stopping")
			return ErrSuperseded
		case domain.CloseGraceful:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Info("backend closed stream gracefully, reconnecting")
		case domain.CloseEvicted:
			m.logger.Warn("evicted by backend, reconnecting")
		default:
			m.logger.Warn("stream lost", "err", sub.Err())
		}

		if !m.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// serve pumps one subscription: heartbeats on a ticker, commands to the
// handler, until the stream ends. Returns the close reason.
func (m *ConnManager) serve(ctx context.Context, sub *Subscription) domain.CloseReason {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go m.heartbeatLoop(serveCtx)

	// Close the stream from our side when ctx is cancelled so the hub
	// sees a graceful disconnect instead of waiting out the timeout.
	go func() {
		select {
		case <-serveCtx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()

	for cmd := range sub.Commands() {
		m.logger.Debug("command received",
			"command_id", cmd.CommandID,
			"command_type", cmd.CommandType,
		)
		m.handler(serveCtx, cmd)
	}
	return sub.Reason()
}

func (m *ConnManager) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.client.Heartbeat(ctx); err != nil {
				m.logger.Warn("heartbeat failed", "err", err)
			}
		}
	}
}

// sleep waits one reconnect interval; false means ctx was cancelled.
func (m *ConnManager) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.reconnectInterval):
		return true
	}
}
