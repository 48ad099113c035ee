package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from the transports
// ─────────────────────────────────────────────────────────────

// EventEmitter publishes service events to whoever is listening.
// The HTTP server implements it with a WebSocket hub; the session an event
// belongs to travels in ctx (see WithSession).
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Session string
	Event   string
	Data    any
}

func (m *MockEmitter) Emit(ctx context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Session: SessionFromContext(ctx), Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
