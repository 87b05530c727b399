package feed

import (
	"sync"

	logs "github.com/danmuck/shogunctl/internal/logging"
	"github.com/danmuck/shogunctl/internal/monitor"
)

const defaultSubscriberBuffer = 16

// Hub fans monitor events out to websocket subscribers. Publish never
// blocks: a subscriber that cannot keep up loses events, not the hub.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan monitor.Event
	nextID uint64
	buffer int
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[uint64]chan monitor.Event),
		buffer: defaultSubscriberBuffer,
	}
}

// Publish delivers the event to every subscriber with room in its buffer.
func (h *Hub) Publish(ev monitor.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logs.Warnf("feed.Hub.Publish dropped subscriber=%d kind=%s", id, ev.Kind)
		}
	}
}

// Subscribe registers a new event channel. The channel is closed by
// Unsubscribe or by Close.
func (h *Hub) Subscribe() (uint64, <-chan monitor.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan monitor.Event, h.buffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Close ends every subscription. Further Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// SubscriberCount reports the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
