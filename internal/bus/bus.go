// Package bus forwards ingested message reports to downstream consumers
// (message handlers, history store). Delivery is at-most-once: reporting is
// best-effort and a saturated bus drops rather than stalling ingest.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"relayhub/internal/domain"
)

const publishWait = 2 * time.Second

// InMemoryBus is a Go-channel based report bus for in-process consumers.
type InMemoryBus struct {
	reports chan domain.BotMessage
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		reports: make(chan domain.BotMessage, bufferSize),
		logger:  logger,
	}
}

// Publish forwards a report to the consumer. Blocks briefly if the bus is
// full, then drops; ingest must never fail because a consumer is slow.
func (b *InMemoryBus) Publish(msg domain.BotMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("report dropped: bus closed", "frontend_id", msg.FrontendID)
		return
	}

	select {
	case b.reports <- msg:
	default:
		b.logger.Warn("report bus full, waiting",
			"frontend_id", msg.FrontendID,
			"event_id", msg.EventID,
		)
		timer := time.NewTimer(publishWait)
		defer timer.Stop()
		select {
		case b.reports <- msg:
		case <-timer.C:
			b.logger.Error("report dropped: bus saturated",
				"frontend_id", msg.FrontendID,
				"event_id", msg.EventID,
			)
		}
	}
}

// Subscribe returns the consumer end of the bus. The channel is closed by
// Close.
func (b *InMemoryBus) Subscribe() <-chan domain.BotMessage {
	return b.reports
}

// Close shuts the bus; further publishes are dropped.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.reports)
	}
}
