package notify

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"docpipe/internal/models"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
)

func TestLevelJSON(t *testing.T) {
	n := Notification{Level: Warning, Message: "Failed to get answer", Time: time.Unix(0, 0).UTC()}

	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"level":"warning"`) {
		t.Errorf("encoded = %s, want level warning", raw)
	}

	var got Notification
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(n, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	var l Level
	if err := l.UnmarshalText([]byte("fatal")); err == nil {
		t.Error("UnmarshalText(fatal) error = nil")
	}
}

func TestMulti(t *testing.T) {
	var a, b []string
	m := Multi{
		Func(func(n Notification) { a = append(a, n.Message) }),
		nil,
		Func(func(n Notification) { b = append(b, n.Message) }),
	}

	m.Notify(Notification{Message: "PDF extraction done"})

	if diff := cmp.Diff([]string{"PDF extraction done"}, a); diff != "" {
		t.Errorf("first notifier mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("notifiers disagree (-first +second):\n%s", diff)
	}
}

func TestConsole(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Notify(Notification{Level: Success, Message: "Embedding generation done", Kind: models.KindEmbedding})
	c.Notify(Notification{Level: Warning, Message: "Failed to get answer"})

	want := "✓ [embedding] Embedding generation done\n! Failed to get answer\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("console output mismatch (-want +got):\n%s", diff)
	}
}

func TestHub(t *testing.T) {
	h := NewHub()
	first, unsubFirst := h.Subscribe()
	second, unsubSecond := h.Subscribe()
	defer unsubSecond()

	h.Notify(Notification{Message: "one"})
	unsubFirst()
	unsubFirst()
	h.Notify(Notification{Message: "two"})

	if got := (<-first).Message; got != "one" {
		t.Errorf("first subscriber got %q, want one", got)
	}
	if _, ok := <-first; ok {
		t.Error("first subscription not closed after unsubscribe")
	}

	var got []string
	for i := 0; i < 2; i++ {
		got = append(got, (<-second).Message)
	}
	if diff := cmp.Diff([]string{"one", "two"}, got); diff != "" {
		t.Errorf("second subscriber mismatch (-want +got):\n%s", diff)
	}
	if h.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", h.Subscribers())
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	defer unsub()

	for i := 0; i < DefaultBuffer+10; i++ {
		h.Notify(Notification{Message: "tick"})
	}
	if len(ch) != DefaultBuffer {
		t.Errorf("queued = %d, want %d", len(ch), DefaultBuffer)
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	h.Close()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("subscription open after Close")
	}
	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after Close is open")
	}
}
