package domain

import (
	"time"

	"github.com/google/uuid"
)

// BotCommand is a unit of work the backend pushes to one frontend.
// Immutable once accepted for delivery.
type BotCommand struct {
	CommandID   string            `json:"command_id"`
	CommandType string            `json:"command_type"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Timestamp   int64             `json:"timestamp"`
}

// Normalized returns a copy with CommandID and Timestamp filled in when the
// caller left them zero.
func (c BotCommand) Normalized() BotCommand {
	if c.CommandID == "" {
		c.CommandID = uuid.NewString()
	}
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().Unix()
	}
	return c
}

// Well-known command types understood by frontend adapters.
const (
	CommandSendMessage = "send_message"
	CommandShutdown    = "shutdown"
)

// BotMessage is an inbound platform event a frontend reports to the backend.
type BotMessage struct {
	EventID    string            `json:"event_id"`
	FrontendID string            `json:"frontend_id"`
	Platform   Platform          `json:"platform"`
	ChatID     string            `json:"chat_id"`
	SenderID   string            `json:"sender_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// ReportAck acknowledges a message report.
type ReportAck struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// HeartbeatAck acknowledges a heartbeat.
type HeartbeatAck struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}
