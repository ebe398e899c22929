// Package ingest accepts inbound frontend signals (heartbeats and message
// reports), keeps the registry's liveness view current, and hands reports to
// the downstream bus. Every path tolerates out-of-order arrival: a heartbeat
// before subscription or a report after eviction implicitly re-registers
// instead of raising a state-machine violation.
package ingest

import (
	"log/slog"

	"relayhub/internal/domain"
	"relayhub/internal/metrics"
	"relayhub/internal/registry"
)

// Router routes inbound signals into the registry and report bus.
type Router struct {
	reg    *registry.Registry
	bus    domain.ReportBus
	logger *slog.Logger
}

func New(reg *registry.Registry, bus domain.ReportBus, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{reg: reg, bus: bus, logger: logger}
}

// OnHeartbeat records liveness for id. An unknown id is implicitly
// registered with PlatformUnknown; heartbeats arriving before the
// subscription completes must not fail.
func (r *Router) OnHeartbeat(id string) domain.HeartbeatAck {
	if !r.reg.Touch(id) {
		r.reg.RegisterOrTouch(id, domain.PlatformUnknown)
	}
	metrics.HeartbeatsReceived.Inc()
	r.logger.Debug("heartbeat", "frontend_id", id)
	return domain.HeartbeatAck{Healthy: true, Message: "backend healthy"}
}

// OnReport refreshes the reporting frontend's liveness, then forwards the
// message unchanged to the bus. Forwarding is best-effort: a dropped report
// is logged by the bus, never surfaced to the frontend.
func (r *Router) OnReport(msg domain.BotMessage) domain.ReportAck {
	if msg.FrontendID == "" {
		return domain.ReportAck{Accepted: false, Reason: "missing frontend_id"}
	}

	if !r.reg.Touch(msg.FrontendID) {
		r.reg.RegisterOrTouch(msg.FrontendID, msg.Platform)
	}

	r.bus.Publish(msg)
	metrics.ReportsIngested.Inc()
	r.logger.Info("message report",
		"frontend_id", msg.FrontendID,
		"platform", msg.Platform,
		"event_id", msg.EventID,
		"content_len", len(msg.Content),
	)
	return domain.ReportAck{Accepted: true}
}
