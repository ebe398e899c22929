package registry

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"relayhub/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSender struct {
	closed bool
	reason domain.CloseReason
}

func (f *fakeSender) TrySend(domain.BotCommand) error { return nil }

func (f *fakeSender) Close(r domain.CloseReason) {
	if !f.closed {
		f.closed = true
		f.reason = r
	}
}

func TestRegisterOrTouch_CreatesThenTouches(t *testing.T) {
	reg := New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })

	info := reg.RegisterOrTouch("F1", domain.PlatformTelegram)
	if info.State != StateRegistered {
		t.Errorf("expected registered, got %s", info.State)
	}
	if !info.LastSeen.Equal(t0) {
		t.Errorf("expected last_seen %v, got %v", t0, info.LastSeen)
	}

	now = t0.Add(5 * time.Second)
	info = reg.RegisterOrTouch("F1", domain.PlatformTelegram)
	if !info.LastSeen.Equal(now) {
		t.Errorf("expected refreshed last_seen %v, got %v", now, info.LastSeen)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", reg.Len())
	}
}

func TestRegisterOrTouch_UpgradesUnknownPlatform(t *testing.T) {
	reg := New(testLogger())

	reg.RegisterOrTouch("F1", domain.PlatformUnknown)
	info := reg.RegisterOrTouch("F1", domain.PlatformDiscord)
	if info.Platform != domain.PlatformDiscord {
		t.Errorf("expected platform upgrade to discord, got %s", info.Platform)
	}
}

func TestBindStream_ReturnsSupersededSender(t *testing.T) {
	reg := New(testLogger())
	s1 := &fakeSender{}
	s2 := &fakeSender{}

	if prev := reg.BindStream("F1", domain.PlatformTelegram, s1); prev != nil {
		t.Fatalf("first bind should have no previous sender")
	}

	prev := reg.BindStream("F1", domain.PlatformTelegram, s2)
	if prev != Sender(s1) {
		t.Fatalf("second bind must yield exactly the first sender")
	}

	got, ok := reg.Sender("F1")
	if !ok || got != Sender(s2) {
		t.Fatal("registry must hold the newest sender")
	}
}

func TestTouch_UnknownIsNoop(t *testing.T) {
	reg := New(testLogger())

	if reg.Touch("ghost") {
		t.Error("touch of unknown id must not succeed")
	}
	if reg.Len() != 0 {
		t.Error("touch must never register")
	}
}

func TestTouch_ResurrectsStale(t *testing.T) {
	reg := New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })

	reg.BindStream("F1", domain.PlatformTelegram, &fakeSender{})

	now = t0.Add(time.Minute)
	if !reg.MarkStale("F1", t0.Add(30*time.Second)) {
		t.Fatal("expected stale mark")
	}

	if !reg.Touch("F1") {
		t.Fatal("touch of known id must succeed")
	}
	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0].State != StateActive {
		t.Errorf("stale entry with a binding must return to active, got %+v", snap)
	}
}

func TestTouch_ResurrectsStaleWithoutBinding(t *testing.T) {
	reg := New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })

	reg.RegisterOrTouch("F1", domain.PlatformUnknown)
	now = t0.Add(time.Minute)
	if !reg.MarkStale("F1", t0.Add(30*time.Second)) {
		t.Fatal("expected stale mark")
	}

	reg.Touch("F1")
	if snap := reg.Snapshot(); snap[0].State != StateRegistered {
		t.Errorf("stale entry without binding must return to registered, got %s", snap[0].State)
	}
}

func TestEvict_Idempotent(t *testing.T) {
	reg := New(testLogger())
	s := &fakeSender{}
	reg.BindStream("F1", domain.PlatformTelegram, s)

	sender, ok := reg.Evict("F1")
	if !ok || sender != Sender(s) {
		t.Fatal("evict must return the bound sender")
	}
	if _, ok := reg.Evict("F1"); ok {
		t.Error("second evict of the same id must report absence")
	}
}

func TestMarkStale_LosesToFreshActivity(t *testing.T) {
	reg := New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })

	reg.BindStream("F1", domain.PlatformTelegram, &fakeSender{})

	now = t0.Add(40 * time.Second)
	reg.Touch("F1")

	if reg.MarkStale("F1", t0.Add(30*time.Second)) {
		t.Error("entry touched after the cutoff must not go stale")
	}
}

func TestEvictExpired_SkipsResurrected(t *testing.T) {
	reg := New(testLogger())
	t0 := time.Now()
	now := t0
	reg.SetClock(func() time.Time { return now })

	s := &fakeSender{}
	reg.BindStream("F1", domain.PlatformTelegram, s)

	now = t0.Add(time.Minute)
	reg.MarkStale("F1", t0.Add(30*time.Second))

	// Heartbeat lands before eviction completes.
	reg.Touch("F1")

	if _, ok := reg.EvictExpired("F1", t0.Add(45*time.Second)); ok {
		t.Fatal("eviction must not fire after resurrection")
	}
	if reg.Len() != 1 {
		t.Error("entry must survive")
	}
}

func TestRemove_OnlyCurrentBinding(t *testing.T) {
	reg := New(testLogger())
	s1 := &fakeSender{}
	s2 := &fakeSender{}
	reg.BindStream("F1", domain.PlatformTelegram, s1)
	reg.BindStream("F1", domain.PlatformTelegram, s2)

	if reg.Remove("F1", s1) {
		t.Error("superseded pump must not remove the entry")
	}
	if !reg.Remove("F1", s2) {
		t.Error("current pump must remove the entry")
	}
	if reg.Len() != 0 {
		t.Error("entry must be gone")
	}
}

func TestSnapshot_SortedByID(t *testing.T) {
	reg := New(testLogger())
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		reg.RegisterOrTouch(id, domain.PlatformQQ)
	}

	snap := reg.Snapshot()
	want := []string{"alpha", "bravo", "charlie"}
	if len(snap) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snap))
	}
	for i, id := range want {
		if snap[i].ID != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].ID, id)
		}
	}
}
