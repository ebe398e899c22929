package bus

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

func TestPublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.BotMessage{EventID: "e1", FrontendID: "F1"})
	b.Publish(domain.BotMessage{EventID: "e2", FrontendID: "F1"})

	for _, want := range []string{"e1", "e2"} {
		select {
		case got := <-b.Subscribe():
			if got.EventID != want {
				t.Errorf("expected %s, got %s", want, got.EventID)
			}
		case <-time.After(time.Second):
			t.Fatal("message never arrived")
		}
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(4, testLogger())
	b.Close()

	// Must not panic; the report is dropped.
	b.Publish(domain.BotMessage{EventID: "e1", FrontendID: "F1"})
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(4, testLogger())
	b.Close()
	b.Close()
}

func TestSubscribeEndsOnClose(t *testing.T) {
	b := New(4, testLogger())
	b.Publish(domain.BotMessage{EventID: "e1", FrontendID: "F1"})
	b.Close()

	var seen int
	for range b.Subscribe() {
		seen++
	}
	if seen != 1 {
		t.Errorf("expected 1 buffered message before close, got %d", seen)
	}
}
