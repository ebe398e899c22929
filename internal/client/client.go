// Package client is the frontend process's view of the relay hub: a command
// subscription stream plus report and heartbeat calls, with an
// auto-reconnecting connection manager on top.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"relayhub/internal/domain"
)

// Client talks to one relay hub on behalf of one frontend id.
type Client struct {
	baseURL    string
	frontendID string
	platform   domain.Platform
	httpClient *http.Client
	logger     *slog.Logger
}

func New(backendURL, frontendID string, platform domain.Platform, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(backendURL, "/"),
		frontendID: frontendID,
		platform:   platform,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *Client) FrontendID() string { return c.frontendID }

// Subscribe opens the command stream. Commands arrive on the subscription's
// channel until the hub closes the stream with an explicit reason or the
// transport fails.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	u := c.wsBaseURL() + "/v1/subscribe?frontend_id=" + c.frontendID + "&platform=" + c.platform.String()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe rejected: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("subscribe dial: %w", err)
	}

	sub := &Subscription{
		conn: conn,
		cmds: make(chan domain.BotCommand, 16),
		done: make(chan struct{}),
	}
	go sub.readLoop()

	c.logger.Info("subscribed to backend", "frontend_id", c.frontendID, "platform", c.platform)
	return sub, nil
}

// Report forwards one platform event to the hub.
func (c *Client) Report(ctx context.Context, msg domain.BotMessage) (domain.ReportAck, error) {
	if msg.FrontendID == "" {
		msg.FrontendID = c.frontendID
	}
	if msg.Platform == domain.PlatformUnknown {
		msg.Platform = c.platform
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	var ack domain.ReportAck
	if err := c.post(ctx, "/v1/report", msg, &ack); err != nil {
		return domain.ReportAck{}, err
	}
	return ack, nil
}

// Heartbeat signals liveness, independent of message traffic.
func (c *Client) Heartbeat(ctx context.Context) (domain.HeartbeatAck, error) {
	req := map[string]string{"frontend_id": c.frontendID}
	var ack domain.HeartbeatAck
	if err := c.post(ctx, "/v1/heartbeat", req, &ack); err != nil {
		return domain.HeartbeatAck{}, err
	}
	return ack, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: backend returned %s", path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) wsBaseURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://")
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://")
	}
	return c.baseURL
}
