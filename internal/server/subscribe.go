package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"relayhub/internal/dispatch"
	"relayhub/internal/domain"
	"relayhub/internal/metrics"
)

// handleSubscribe upgrades the request to a WebSocket and streams commands
// to the frontend until the stream is closed from either side. A newer
// subscription for the same frontend id supersedes this one.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("frontend_id")
	if id == "" {
		http.Error(w, "missing frontend_id", http.StatusBadRequest)
		return
	}
	platform, err := domain.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("subscribe upgrade failed", "frontend_id", id, "err", err)
		return
	}

	queue := dispatch.NewQueue(s.queueCap)
	if prev := s.reg.BindStream(id, platform, queue); prev != nil {
		prev.Close(domain.CloseSuperseded)
		metrics.Supersessions.Inc()
	}
	metrics.ConnectedFrontends.Inc()

	s.logger.Info("frontend subscribed", "frontend_id", id, "platform", platform)

	go s.readLoop(id, conn, queue)
	s.pump(id, conn, queue)
}

// readLoop watches the socket for the client closing its end. The subscribe
// stream is server-push only; anything else the client sends is discarded.
func (s *Server) readLoop(id string, conn *websocket.Conn, queue *dispatch.Queue) {
	conn.SetReadLimit(maxInboundFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				queue.Close(domain.CloseGraceful)
			} else {
				queue.Close(domain.CloseError)
			}
			return
		}
	}
}

// pump drains the outbound queue into the socket, FIFO. Exiting the pump is
// the authoritative teardown signal for the connection: it closes the socket
// and defensively removes the registry entry if this queue still owns it.
func (s *Server) pump(id string, conn *websocket.Conn, queue *dispatch.Queue) {
	started := time.Now()
	defer func() {
		conn.Close()
		s.reg.Remove(id, queue)
		metrics.ConnectedFrontends.Dec()
		metrics.StreamDuration.Observe(time.Since(started).Seconds())
		s.logger.Info("stream closed", "frontend_id", id, "reason", queue.Reason())
	}()

	for {
		select {
		case <-queue.Done():
			s.sendCloseFrame(conn, queue.Reason())
			return
		case cmd := <-queue.Commands():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cmd); err != nil {
				s.logger.Warn("stream write failed", "frontend_id", id, "err", err)
				queue.Close(domain.CloseError)
				return
			}
		}
	}
}

// sendCloseFrame tells the remote side why the stream ended. The reason text
// travels in the close frame so a frontend can distinguish eviction and
// supersession from a transport failure; on CloseError the transport is
// already broken and no frame is sent.
func (s *Server) sendCloseFrame(conn *websocket.Conn, reason domain.CloseReason) {
	if reason == domain.CloseError {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(reason))
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		s.logger.Debug("close frame write failed", "err", err)
	}
}
