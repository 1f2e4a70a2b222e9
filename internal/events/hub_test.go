package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Event{Type: TypeRoundStarted, RoundID: 3})
	select {
	case ev := <-ch:
		if ev.Type != TypeRoundStarted || ev.RoundID != 3 || ev.At.IsZero() {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := &Hub{Buffer: 1}
	_, cancel := h.Subscribe()
	defer cancel()
	h.Publish(Event{Type: "a"})
	h.Publish(Event{Type: "b"})
	if h.Subscribers() != 1 {
		t.Fatalf("expected subscriber to stay registered")
	}
}

func TestHubCancelUnsubscribes(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe()
	cancel()
	cancel()
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Subscribers())
	}
	h.Publish(Event{Type: "after-cancel"})
}

func TestNilHub(t *testing.T) {
	var h *Hub
	h.Publish(Event{Type: "noop"})
	if h.Subscribers() != 0 {
		t.Fatalf("nil hub has no subscribers")
	}
}

func TestServeWS(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Publish(Event{Type: TypeRoundSettled, RoundID: 7, TxHash: "0xabc"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != TypeRoundSettled || ev.RoundID != 7 || ev.TxHash != "0xabc" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
