package app

import (
	"context"

	"listbind/internal/dbclient"
)

// ============================================================
// External Sources
// ============================================================

// SourceView is the password-free view of a configured source.
type SourceView struct {
	Name        string `json:"name"`
	Driver      string `json:"driver"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Database    string `json:"database"`
	Username    string `json:"username"`
	PasswordKey string `json:"passwordKey,omitempty"`
}

// Sources returns the configured external sources ordered by name.
func (a *App) Sources() []SourceView {
	conns := a.sourceSvc.ListConnections()
	out := make([]SourceView, len(conns))
	for i, c := range conns {
		out[i] = SourceView{
			Name:        c.Name,
			Driver:      string(c.Driver),
			Host:        c.Host,
			Port:        c.Port,
			Database:    c.Database,
			Username:    c.Username,
			PasswordKey: c.PasswordKey,
		}
	}
	return out
}

// TestSource pings a configured source.
func (a *App) TestSource(ctx context.Context, name string) error {
	return a.sourceSvc.TestConnection(ctx, name)
}

// IntrospectSource lists the tables (or collections) of a configured source.
func (a *App) IntrospectSource(ctx context.Context, name string) (*dbclient.SchemaInfo, error) {
	return a.sourceSvc.Introspect(ctx, name)
}

// SetSecret stores a source password under key in the configured secret backend.
func (a *App) SetSecret(key string, value []byte) error {
	return a.secrets.Set(key, value)
}

// DeleteSecret removes a stored source password.
func (a *App) DeleteSecret(key string) error {
	return a.secrets.Delete(key)
}
