package server

import (
	"context"
	"log"
	"sync"

	"listbind/internal/service"
)

// subscriberBuffer bounds the messages queued for one slow connection.
const subscriberBuffer = 64

// Hub fans service events out to WebSocket subscribers. Events carrying a
// session id reach that session's subscribers; events without one reach
// everybody. It implements service.EventEmitter.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	session string
	ch      chan ServerMessage
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

var _ service.EventEmitter = (*Hub)(nil)

// Emit delivers an event without blocking. If a subscriber's buffer is full
// the event is dropped for it and a warning is logged.
func (h *Hub) Emit(ctx context.Context, event string, data any) {
	session := service.SessionFromContext(ctx)
	msg := ServerMessage{
		Type: "event",
		Data: EventData{Event: event, Session: session, Payload: data},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if session != "" && s.session != session {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			log.Printf("hub: buffer full, dropping %s for session %s", event, s.session)
		}
	}
}

// Subscribe registers a subscriber for one session. The returned function
// unregisters it and closes its channel.
func (h *Hub) Subscribe(session string) (<-chan ServerMessage, func()) {
	s := &subscriber{session: session, ch: make(chan ServerMessage, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
