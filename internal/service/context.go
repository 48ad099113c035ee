package service

import "context"

type sessionKey struct{}

// WithSession tags ctx with a form session id so emitted events can be routed
// to that session's subscribers.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session id set by WithSession, or "".
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
