// Package events fans session and call transitions out to websocket
// subscribers on the analytics side.
package events

import (
	"sync"
	"time"

	"carrierdesk/internal/broker/negotiation"
)

type Kind string

const (
	KindSessionUpdated Kind = "session_updated"
	KindCallUpdated    Kind = "call_updated"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

const subscriberBuffer = 32

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers to every subscriber without blocking; a slow consumer
// drops events rather than stalling the negotiation path.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SessionChanged implements negotiation.Sink.
func (h *Hub) SessionChanged(view *negotiation.View) {
	h.Publish(Event{Kind: KindSessionUpdated, Payload: view})
}

// CallChanged publishes a call transition.
func (h *Hub) CallChanged(payload any) {
	h.Publish(Event{Kind: KindCallUpdated, Payload: payload})
}
