package dispatch

import (
	"sync"

	"relayhub/internal/domain"
)

// DefaultQueueCapacity bounds each connection's outbound queue unless
// configured otherwise. Kept small: a frontend that cannot drain 64 pending
// commands is effectively gone.
const DefaultQueueCapacity = 64

// Queue is the outbound half of one command stream: a bounded FIFO between
// the dispatcher and the stream pump that drains it into the transport.
// Implements registry.Sender.
type Queue struct {
	cmds chan domain.BotCommand

	once   sync.Once
	done   chan struct{}
	reason domain.CloseReason
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		cmds: make(chan domain.BotCommand, capacity),
		done: make(chan struct{}),
	}
}

// TrySend appends cmd without ever blocking the caller. A full queue is
// ErrBackpressure; a closed queue is ErrCancelled.
func (q *Queue) TrySend(cmd domain.BotCommand) error {
	select {
	case <-q.done:
		return domain.ErrCancelled
	default:
	}
	select {
	case q.cmds <- cmd:
		return nil
	case <-q.done:
		return domain.ErrCancelled
	default:
		return domain.ErrBackpressure
	}
}

// Close terminates the stream with the given reason. Idempotent; only the
// first reason sticks, so an eviction racing a graceful disconnect reports
// one consistent cause to the remote side.
func (q *Queue) Close(reason domain.CloseReason) {
	q.once.Do(func() {
		q.reason = reason
		close(q.done)
	})
}

// Commands is the pump's end of the queue.
func (q *Queue) Commands() <-chan domain.BotCommand { return q.cmds }

// Done is closed when the queue is closed.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Reason reports why the queue was closed. Valid only after Done is closed.
func (q *Queue) Reason() domain.CloseReason { return q.reason }
