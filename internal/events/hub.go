package events

import (
	"context"
	"log/slog"
	"sync"
)

const subscriberBuffer = 32

// Hub is the in-process fan-out point between the sync worker and live
// observers (WebSocket connections, tests).
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
// Observers are dashboards that re-query on reconnect, so dropped events cost
// a refresh, not data.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: map[chan Event]struct{}{},
		log:  log,
	}
}

// Subscribe registers an observer. The returned cancel func must be called
// exactly once; after it returns the channel is closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(ctx context.Context, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.log.Debug("event dropped for slow subscriber", "kind", string(e.Kind))
		}
	}
}

// SubscriberCount is used by health/diagnostic output.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
