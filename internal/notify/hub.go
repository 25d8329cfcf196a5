// Package notify pushes sync changes to connected UI clients over
// websockets so views refresh without polling.
package notify

import (
	"net/http"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/calmirror/calmirror/internal/gsync"
	"github.com/calmirror/calmirror/internal/log"
)

const subscriberBuffer = 16

type Hub struct {
	mu   sync.Mutex
	subs map[chan []gsync.Change]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []gsync.Change]struct{})}
}

// Subscribe registers a change listener. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe() (<-chan []gsync.Change, func()) {
	ch := make(chan []gsync.Change, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans a change batch out to all subscribers. A subscriber that
// cannot keep up misses the batch; clients reconcile on reconnect anyway.
func (h *Hub) Publish(changes []gsync.Change) {
	if len(changes) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- changes:
		default:
			log.Debugf("dropping change batch for slow subscriber")
		}
	}
}

// ServeHTTP upgrades the connection and streams change batches as JSON
// arrays until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Errorf("websocket accept failed", err)
		return
	}
	defer conn.CloseNow()

	ch, cancel := h.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case changes := <-ch:
			if err := wsjson.Write(ctx, conn, changes); err != nil {
				log.Debugf("websocket write failed, dropping client", "err", err)
				return
			}
		}
	}
}
