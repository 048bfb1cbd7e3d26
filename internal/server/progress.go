package server

import (
	"sync"

	"github.com/henrybloomingdale/clinlit/internal/batch"
)

// subscriberBuffer bounds each subscriber channel; a slow consumer drops
// events rather than stalling the pipeline.
const subscriberBuffer = 16

// Hub fans batch progress events out to SSE subscribers. It implements
// batch.Sink so it plugs straight into the orchestrator config.
type Hub struct {
	mu   sync.Mutex
	subs map[chan batch.Progress]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan batch.Progress]struct{})}
}

// Emit delivers an event to every subscriber without blocking.
func (h *Hub) Emit(p batch.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned cancel must be called
// when the listener goes away.
func (h *Hub) Subscribe() (<-chan batch.Progress, func()) {
	ch := make(chan batch.Progress, subscriberBuffer)
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

var _ batch.Sink = (*Hub)(nil)
