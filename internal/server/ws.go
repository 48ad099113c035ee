package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"listbind/internal/service"
)

// sessionStream upgrades to WebSocket and streams the session's events.
// Clients may also send "select", "state" and "ping" messages on it.
func (s *Server) sessionStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.forms.Get(chi.URLParam(r, "id"))
	if err != nil {
		errorToHTTP(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		log.Printf("server: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.hub.Subscribe(sess.ID)
	defer unsubscribe()

	s.send(ctx, conn, ServerMessage{Type: "session", Data: sess.State()})

	go func() {
		defer cancel()
		for msg := range events {
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
			if ev, ok := msg.Data.(EventData); ok && ev.Event == service.EventSessionClosed {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
		}
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 && status != websocket.StatusNormalClosure {
				log.Printf("server: session %s stream closed: %v", sess.ID, status)
			}
			return
		}

		switch msg.Type {
		case "select":
			s.handleSelect(ctx, conn, sess.ID, msg)
		case "state":
			current, err := s.forms.Get(sess.ID)
			if err != nil {
				s.sendError(ctx, conn, msg.ID, err)
				continue
			}
			s.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: current.State()})
		case "ping":
			s.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			s.send(ctx, conn, ServerMessage{
				Type:      "error",
				RequestID: msg.ID,
				Data:      ErrorData{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown message type: %s", msg.Type)},
			})
		}
	}
}

func (s *Server) handleSelect(ctx context.Context, conn *websocket.Conn, sessionID string, msg ClientMessage) {
	var data SelectData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.Control == "" {
		s.send(ctx, conn, ServerMessage{
			Type:      "error",
			RequestID: msg.ID,
			Data:      ErrorData{Code: "INVALID_DATA", Message: "select needs control and value"},
		})
		return
	}

	res, err := s.forms.Select(ctx, sessionID, data.Control, data.Value)
	if err != nil {
		s.sendError(ctx, conn, msg.ID, err)
		return
	}
	s.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: res})
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("server: websocket write error: %v", err)
	}
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, requestID string, err error) {
	_, code := errorStatus(err)
	s.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: err.Error()},
	})
}
