package ingest

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"relayhub/internal/bus"
	"relayhub/internal/domain"
	"relayhub/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOnHeartbeat_UnknownIdImplicitlyRegisters(t *testing.T) {
	reg := registry.New(testLogger())
	r := New(reg, bus.New(4, testLogger()), testLogger())

	ack := r.OnHeartbeat("F1")
	if !ack.Healthy {
		t.Error("heartbeat before subscription must not fail")
	}

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected implicit registration, got %d entries", len(snap))
	}
	if snap[0].Platform != domain.PlatformUnknown {
		t.Errorf("implicit registration uses the unknown platform, got %s", snap[0].Platform)
	}
	if snap[0].State != registry.StateRegistered {
		t.Errorf("expected registered, got %s", snap[0].State)
	}
}

func TestOnHeartbeat_TouchesKnownId(t *testing.T) {
	reg := registry.New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })
	reg.RegisterOrTouch("F1", domain.PlatformTelegram)

	r := New(reg, bus.New(4, testLogger()), testLogger())
	now = t0.Add(20 * time.Second)
	r.OnHeartbeat("F1")

	if snap := reg.Snapshot(); !snap[0].LastSeen.Equal(now) {
		t.Errorf("heartbeat must refresh last_seen, got %v", snap[0].LastSeen)
	}
	if reg.Len() != 1 {
		t.Errorf("heartbeat must not duplicate entries, got %d", reg.Len())
	}
}

func TestOnReport_ForwardsToBus(t *testing.T) {
	reg := registry.New(testLogger())
	reportBus := bus.New(4, testLogger())
	r := New(reg, reportBus, testLogger())

	msg := domain.BotMessage{
		EventID:    "e1",
		FrontendID: "F1",
		Platform:   domain.PlatformQQ,
		Content:    "hello",
	}
	ack := r.OnReport(msg)
	if !ack.Accepted {
		t.Fatalf("report rejected: %s", ack.Reason)
	}

	select {
	case got := <-reportBus.Subscribe():
		if got.EventID != "e1" || got.Content != "hello" {
			t.Errorf("report must be forwarded unchanged, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("report never reached the bus")
	}

	// Report from an unknown id registers it with its platform.
	if snap := reg.Snapshot(); len(snap) != 1 || snap[0].Platform != domain.PlatformQQ {
		t.Errorf("expected implicit registration with platform qq, got %+v", snap)
	}
}

func TestOnReport_MissingFrontendId(t *testing.T) {
	r := New(registry.New(testLogger()), bus.New(4, testLogger()), testLogger())

	ack := r.OnReport(domain.BotMessage{EventID: "e1"})
	if ack.Accepted {
		t.Error("report without frontend_id must be rejected")
	}
}

func TestOnReport_AfterEvictionIsTolerated(t *testing.T) {
	reg := registry.New(testLogger())
	reg.RegisterOrTouch("F1", domain.PlatformTelegram)
	reg.Evict("F1")

	r := New(reg, bus.New(4, testLogger()), testLogger())
	ack := r.OnReport(domain.BotMessage{EventID: "e2", FrontendID: "F1", Platform: domain.PlatformTelegram})
	if !ack.Accepted {
		t.Error("report after eviction must re-register, not fail")
	}
	if reg.Len() != 1 {
		t.Error("expected re-registration")
	}
}
