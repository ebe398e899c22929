package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relayhub/internal/bus"
	"relayhub/internal/dispatch"
	"relayhub/internal/domain"
	"relayhub/internal/ingest"
	"relayhub/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testHub struct {
	reg *registry.Registry
	bus *bus.InMemoryBus
	ts  *httptest.Server
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	logger := testLogger()
	reg := registry.New(logger)
	reportBus := bus.New(16, logger)
	disp := dispatch.New(reg, logger)
	router := ingest.New(reg, reportBus, logger)
	srv := New(reg, disp, router, Config{QueueCapacity: 8, Logger: logger})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(reportBus.Close)
	return &testHub{reg: reg, bus: reportBus, ts: ts}
}

func (h *testHub) subscribe(t *testing.T, frontendID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/v1/subscribe?frontend_id=" + frontendID + "&platform=telegram"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("subscribe dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *testHub) waitBound(t *testing.T, id string, not registry.Sender) registry.Sender {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := h.reg.Sender(id); ok && s != not {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stream for %s never bound", id)
	return nil
}

func (h *testHub) dispatch(t *testing.T, req DispatchRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(h.ts.URL+"/v1/dispatch", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readCloseReason(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return closeErr.Text
		}
		t.Fatalf("expected close frame, got %v", err)
	}
}

func TestDispatch_DeliversInOrder(t *testing.T) {
	h := newTestHub(t)
	conn := h.subscribe(t, "F1")
	h.waitBound(t, "F1", nil)

	ids := []string{"c1", "c2", "c3"}
	for _, id := range ids {
		resp := h.dispatch(t, DispatchRequest{
			FrontendID: "F1",
			Command:    domain.BotCommand{CommandID: id, CommandType: domain.CommandSendMessage},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("dispatch %s: %s", id, resp.Status)
		}
	}

	for _, want := range ids {
		var cmd domain.BotCommand
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&cmd); err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if cmd.CommandID != want {
			t.Errorf("expected %s, got %s", want, cmd.CommandID)
		}
		if cmd.Timestamp == 0 {
			t.Error("dispatched command must carry a timestamp")
		}
	}
}

func TestDispatch_NotConnected(t *testing.T) {
	h := newTestHub(t)

	resp := h.dispatch(t, DispatchRequest{
		FrontendID: "ghost",
		Command:    domain.BotCommand{CommandType: domain.CommandSendMessage},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unconnected frontend, got %s", resp.Status)
	}
}

func TestDispatch_MissingCommandType(t *testing.T) {
	h := newTestHub(t)

	resp := h.dispatch(t, DispatchRequest{FrontendID: "F1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %s", resp.Status)
	}
}

// A second subscription for the same id supersedes the first: the old stream
// sees a close reason distinct from eviction, and later commands flow only to
// the new stream.
func TestSubscribe_Supersession(t *testing.T) {
	h := newTestHub(t)

	conn1 := h.subscribe(t, "F1")
	first := h.waitBound(t, "F1", nil)

	conn2 := h.subscribe(t, "F1")
	h.waitBound(t, "F1", first)

	if reason := readCloseReason(t, conn1); reason != string(domain.CloseSuperseded) {
		t.Fatalf("superseded stream got close reason %q", reason)
	}

	resp := h.dispatch(t, DispatchRequest{
		FrontendID: "F1",
		Command:    domain.BotCommand{CommandID: "c1", CommandType: domain.CommandSendMessage},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dispatch after supersession: %s", resp.Status)
	}

	var cmd domain.BotCommand
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn2.ReadJSON(&cmd); err != nil {
		t.Fatalf("new stream must receive the command: %v", err)
	}
	if cmd.CommandID != "c1" {
		t.Errorf("expected c1, got %s", cmd.CommandID)
	}
}

// Eviction closes the stream with an explicit evicted reason, never a bare
// disconnect.
func TestSubscribe_EvictedCloseReason(t *testing.T) {
	h := newTestHub(t)
	conn := h.subscribe(t, "F1")
	h.waitBound(t, "F1", nil)

	sender, ok := h.reg.Evict("F1")
	if !ok {
		t.Fatal("evict failed")
	}
	sender.Close(domain.CloseEvicted)

	if reason := readCloseReason(t, conn); reason != string(domain.CloseEvicted) {
		t.Errorf("expected evicted close reason, got %q", reason)
	}
}

// A client closing its end is a graceful disconnect: the entry is removed
// immediately without waiting for the staleness sweep.
func TestSubscribe_GracefulClientClose(t *testing.T) {
	h := newTestHub(t)
	conn := h.subscribe(t, "F1")
	h.waitBound(t, "F1", nil)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.reg.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("graceful close must remove the registry entry")
}

func TestHeartbeatEndpoint(t *testing.T) {
	h := newTestHub(t)

	body := bytes.NewReader([]byte(`{"frontend_id":"F9"}`))
	resp, err := http.Post(h.ts.URL+"/v1/heartbeat", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var ack domain.HeartbeatAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Healthy {
		t.Error("heartbeat ack must be healthy")
	}
	if h.reg.Len() != 1 {
		t.Error("heartbeat must implicitly register the frontend")
	}
}

func TestReportEndpoint(t *testing.T) {
	h := newTestHub(t)

	report := domain.BotMessage{EventID: "e1", FrontendID: "F1", Platform: domain.PlatformQQ, Content: "hi"}
	body, _ := json.Marshal(report)
	resp, err := http.Post(h.ts.URL+"/v1/report", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var ack domain.ReportAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Accepted {
		t.Fatalf("report rejected: %s", ack.Reason)
	}

	select {
	case got := <-h.bus.Subscribe():
		if got.EventID != "e1" {
			t.Errorf("expected e1 on the bus, got %s", got.EventID)
		}
	case <-time.After(time.Second):
		t.Fatal("report never reached the bus")
	}
}

func TestFrontendsEndpoint(t *testing.T) {
	h := newTestHub(t)
	h.subscribe(t, "F1")
	h.waitBound(t, "F1", nil)

	resp, err := http.Get(h.ts.URL + "/v1/frontends")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var entries []registry.EntryInfo
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "F1" || !entries[0].Bound {
		t.Errorf("unexpected snapshot: %+v", entries)
	}
	if entries[0].State != registry.StateActive {
		t.Errorf("expected active, got %s", entries[0].State)
	}
}
