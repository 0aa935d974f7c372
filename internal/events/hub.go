// Package events fans committed market events out to in-process
// subscribers and websocket clients. The hub never persists anything:
// the event row is written inside the originating transaction and the
// hub only sees it after commit.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"predmarket/internal/models"
)

type Hub struct {
	mu            sync.RWMutex
	subs          map[uint64]chan models.MarketEvent
	nextID        uint64
	buf           int
	droppedFanout uint64

	logger *zap.Logger
}

func NewHub(buf int, logger *zap.Logger) *Hub {
	if buf <= 0 {
		buf = 64
	}
	return &Hub{
		subs:   map[uint64]chan models.MarketEvent{},
		buf:    buf,
		logger: logger,
	}
}

// Publish fans an event out to all subscribers. Slow subscribers are
// skipped; the hub must not block a ledger operation.
func (h *Hub) Publish(ev models.MarketEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			atomic.AddUint64(&h.droppedFanout, 1)
		}
	}
}

// Subscribe returns a channel of published events and a cancel func.
func (h *Hub) Subscribe() (<-chan models.MarketEvent, func()) {
	ch := make(chan models.MarketEvent, h.buf)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Dropped reports how many events were dropped on slow subscribers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.droppedFanout)
}

type wsFrame struct {
	ID        uint64 `json:"id"`
	MarketID  string `json:"market_id"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Payload   any    `json:"payload,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ServeWS upgrades the request and streams events until the client
// disconnects or the context ends.
func (h *Hub) ServeWS(ctx context.Context, conn *websocket.Conn) {
	ch, cancel := h.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "server shutdown")
			return
		case ev := <-ch:
			frame := wsFrame{
				ID:        ev.ID,
				MarketID:  ev.MarketID.String(),
				Type:      ev.Type,
				Actor:     ev.Actor,
				CreatedAt: ev.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			}
			if len(ev.Payload) > 0 {
				frame.Payload = json.RawMessage(ev.Payload)
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				if h.logger != nil {
					h.logger.Debug("event stream write failed", zap.Error(err))
				}
				_ = conn.Close(websocket.StatusNormalClosure, "write failed")
				return
			}
		}
	}
}
