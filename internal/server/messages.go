package server

import "encoding/json"

// ── Client → Server messages ───────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "select", "state", "ping"
	ID   string          `json:"id"`   // client-assigned request id
	Data json.RawMessage `json:"data,omitempty"`
}

// SelectData is the payload of "select" messages and of POST .../select.
type SelectData struct {
	Control string `json:"control"`
	Value   string `json:"value"`
}

// ── Server → Client messages ───────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"` // "session", "event", "state", "error", "pong"
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// EventData carries one emitted service event.
type EventData struct {
	Event   string `json:"event"`
	Session string `json:"session,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
