// Package dispatch delivers commands to specific frontends' bound streams,
// preserving per-connection FIFO order. One slow connection only fills its
// own queue; it never stalls delivery to others.
package dispatch

import (
	"log/slog"

	"relayhub/internal/domain"
	"relayhub/internal/metrics"
	"relayhub/internal/registry"
)

// Dispatcher enqueues commands onto per-connection outbound queues. Actual
// transmission is driven by each stream's own pump.
type Dispatcher struct {
	reg    *registry.Registry
	logger *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{reg: reg, logger: logger}
}

// SendTo enqueues cmd for the frontend's bound stream. Returns
// ErrNotConnected when no live binding exists (the id may still be
// registered), ErrBackpressure when the queue is full, ErrCancelled when the
// stream was torn down between lookup and enqueue.
func (d *Dispatcher) SendTo(id string, cmd domain.BotCommand) error {
	sender, ok := d.reg.Sender(id)
	if !ok {
		return domain.ErrNotConnected
	}

	cmd = cmd.Normalized()
	if err := sender.TrySend(cmd); err != nil {
		if err == domain.ErrBackpressure {
			metrics.DispatchBackpressure.Inc()
			d.logger.Warn("outbound queue full", "frontend_id", id, "command_id", cmd.CommandID)
		}
		return err
	}

	metrics.CommandsDispatched.Inc()
	d.logger.Debug("command enqueued",
		"frontend_id", id,
		"command_id", cmd.CommandID,
		"command_type", cmd.CommandType,
	)
	return nil
}

// SendToAll delivers cmd independently to every currently-bound connection.
// Partial failure does not abort the rest; the returned map carries one error
// per frontend that did not accept the command.
func (d *Dispatcher) SendToAll(cmd domain.BotCommand) (delivered int, failed map[string]error) {
	cmd = cmd.Normalized()
	failed = make(map[string]error)

	for _, e := range d.reg.Snapshot() {
		if !e.Bound {
			continue
		}
		if err := d.SendTo(e.ID, cmd); err != nil {
			failed[e.ID] = err
			d.logger.Warn("broadcast delivery failed", "frontend_id", e.ID, "err", err)
			continue
		}
		delivered++
	}
	return delivered, failed
}
