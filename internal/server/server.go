// Package server exposes the relay hub over HTTP: a WebSocket subscription
// stream for outbound commands plus JSON endpoints for reports, heartbeats,
// and administrative dispatch.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"relayhub/internal/dispatch"
	"relayhub/internal/domain"
	"relayhub/internal/ingest"
	"relayhub/internal/metrics"
	"relayhub/internal/registry"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Maximum size of inbound frames on the subscribe socket. Frontends
	// only send pings and close frames there.
	maxInboundFrame = 4096
)

// CommandRecorder persists dispatched commands for the audit log. Optional.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, frontendID string, cmd domain.BotCommand) error
}

// Config configures the hub server.
type Config struct {
	Listen        string
	QueueCapacity int
	Logger        *slog.Logger
	Recorder      CommandRecorder // may be nil
}

// Server is the backend-side transport for frontends and admin callers.
type Server struct {
	listen   string
	queueCap int
	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	router   *ingest.Router
	recorder CommandRecorder
	logger   *slog.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func New(reg *registry.Registry, disp *dispatch.Dispatcher, router *ingest.Router, cfg Config) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8443"
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = dispatch.DefaultQueueCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		listen:   cfg.Listen,
		queueCap: cfg.QueueCapacity,
		reg:      reg,
		disp:     disp,
		router:   router,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // frontends connect from anywhere
			},
		},
	}
}

// Handler returns the hub's HTTP routes. Split out so tests can mount them
// on httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscribe", s.handleSubscribe)
	mux.HandleFunc("/v1/report", s.handleReport)
	mux.HandleFunc("/v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/v1/dispatch", s.handleDispatch)
	mux.HandleFunc("/v1/frontends", s.handleFrontends)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/metrics", metrics.Collector.Handler())
	return mux
}

// Start runs the server until ctx is cancelled, then closes every live
// stream with a graceful reason and shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("relay hub listening", "addr", s.listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.drain()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// drain evicts every connection so each pump sends a graceful close frame
// before the listener goes away.
func (s *Server) drain() {
	for _, e := range s.reg.Snapshot() {
		sender, ok := s.reg.Evict(e.ID)
		if ok && sender != nil {
			sender.Close(domain.CloseGraceful)
		}
	}
}
