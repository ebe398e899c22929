package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"relayhub/internal/domain"
)

// DispatchRequest is the admin payload for pushing a command. An empty
// FrontendID broadcasts to every bound connection.
type DispatchRequest struct {
	FrontendID string            `json:"frontend_id,omitempty"`
	Command    domain.BotCommand `json:"command"`
}

// DispatchResponse reports the outcome of a dispatch call.
type DispatchResponse struct {
	CommandID string            `json:"command_id"`
	Delivered int               `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg domain.BotMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid report payload", http.StatusBadRequest)
		return
	}

	ack := s.router.OnReport(msg)
	status := http.StatusOK
	if !ack.Accepted {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ack)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		FrontendID string `json:"frontend_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FrontendID == "" {
		http.Error(w, "missing frontend_id", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.router.OnHeartbeat(req.FrontendID))
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid dispatch payload", http.StatusBadRequest)
		return
	}
	if req.Command.CommandType == "" {
		http.Error(w, "missing command_type", http.StatusBadRequest)
		return
	}
	cmd := req.Command.Normalized()

	if req.FrontendID == "" {
		delivered, failed := s.disp.SendToAll(cmd)
		resp := DispatchResponse{CommandID: cmd.CommandID, Delivered: delivered}
		if len(failed) > 0 {
			resp.Failed = make(map[string]string, len(failed))
			for id, err := range failed {
				resp.Failed[id] = err.Error()
			}
		}
		s.record(r, "", cmd)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.disp.SendTo(req.FrontendID, cmd); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrBackpressure):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, domain.ErrCancelled):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	s.record(r, req.FrontendID, cmd)
	writeJSON(w, http.StatusOK, DispatchResponse{CommandID: cmd.CommandID, Delivered: 1})
}

func (s *Server) handleFrontends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Snapshot())
}

// record persists a dispatched command in the audit store, best-effort.
func (s *Server) record(r *http.Request, frontendID string, cmd domain.BotCommand) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordCommand(r.Context(), frontendID, cmd); err != nil {
		s.logger.Warn("command audit record failed", "command_id", cmd.CommandID, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
