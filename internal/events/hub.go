// Package events fans keeper activity out to websocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	TypeRoundStarted     = "round_started"
	TypeRoundSettled     = "round_settled"
	TypeAdvanceFailed    = "advance_failed"
	TypeAdvanceResumed   = "advance_resumed"
	TypeAutoManage       = "auto_manage"
	TypeClaimSubmitted   = "claim_submitted"
	TypeContractInitDone = "contract_initialized"
)

type Event struct {
	Type    string         `json:"type"`
	RoundID uint64         `json:"roundId,omitempty"`
	TxHash  string         `json:"transactionHash,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
	At      time.Time      `json:"at"`
}

// Hub drops events for subscribers that cannot keep up rather than block
// the keeper. A nil *Hub discards everything.
type Hub struct {
	Logger *zap.Logger
	Buffer int

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{Logger: logger, Buffer: 32}
}

func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger().Warn("event subscriber lagging, dropping event", zap.String("type", ev.Type))
		}
	}
}

// Subscribe returns a channel of future events and a cancel func that
// closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	size := h.Buffer
	if size <= 0 {
		size = 32
	}
	ch := make(chan Event, size)
	h.mu.Lock()
	if h.subs == nil {
		h.subs = map[chan Event]struct{}{}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeWS streams events as JSON text frames until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger().Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	// Reads are only needed to observe the close handshake.
	ctx := conn.CloseRead(r.Context())
	events, cancel := h.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) logger() *zap.Logger {
	if h == nil || h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
