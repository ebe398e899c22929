package client

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"relayhub/internal/domain"
)

// Subscription is one live command stream. Commands() yields hub-pushed
// commands in delivery order; when the channel closes, Reason and Err say
// how the stream ended.
type Subscription struct {
	conn *websocket.Conn
	cmds chan domain.BotCommand
	done chan struct{}

	reason domain.CloseReason
	err    error
}

// Commands is closed when the stream ends.
func (s *Subscription) Commands() <-chan domain.BotCommand { return s.cmds }

// Done is closed when the stream ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Reason reports why the stream ended. Valid after Done is closed. A
// backend-initiated close always carries an explicit reason; CloseError
// means the transport broke.
func (s *Subscription) Reason() domain.CloseReason { return s.reason }

// Err returns the transport error for CloseError endings, nil otherwise.
func (s *Subscription) Err() error { return s.err }

// Close ends the subscription from the frontend side with a normal close
// frame, the hub's graceful-disconnect signal.
func (s *Subscription) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(domain.CloseGraceful))
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	s.conn.WriteMessage(websocket.CloseMessage, msg)
	return s.conn.Close()
}

func (s *Subscription) readLoop() {
	defer func() {
		s.conn.Close()
		close(s.done)
		close(s.cmds)
	}()

	for {
		var cmd domain.BotCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				s.reason = domain.ParseCloseReason(closeErr.Text)
			} else {
				s.reason = domain.CloseError
				s.err = err
			}
			return
		}
		s.cmds <- cmd
	}
}
