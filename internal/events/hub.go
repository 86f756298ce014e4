package events

import (
	"log/slog"
	"sync"

	"levlyfy/internal/calls"
	"levlyfy/pkg/logger"
)

const subscriberBuffer = 16

// Hub fans coordinator transitions out to any number of views. A slow
// view loses messages; it never slows the others down.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   map[chan calls.Transition]struct{}
	closed bool
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: logger.OrDiscard(log), subs: make(map[chan calls.Transition]struct{})}
}

// Observe implements calls.Observer.
func (h *Hub) Observe(t calls.Transition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- t:
		default:
			if !t.Tick {
				h.log.Warn("view too slow, dropping transition", "to", t.To)
			}
		}
	}
}

// Subscribe returns a stream of transitions and a func that ends it.
// The channel is closed on cancel or when the hub closes.
func (h *Hub) Subscribe() (<-chan calls.Transition, func()) {
	ch := make(chan calls.Transition, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
