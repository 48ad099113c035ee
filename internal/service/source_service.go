package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"listbind/internal/dbclient"
	"listbind/internal/domain"
	"listbind/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Source Service — external list sources
// ─────────────────────────────────────────────────────────────

// sourceOpener opens a configured source. Swapped in tests.
type sourceOpener func(conn *domain.DatabaseConnection, password string) (dbclient.Source, error)

// SourceService manages the configured external list sources. It keeps a pool
// of live connections keyed by source name.
type SourceService struct {
	conns   map[string]domain.DatabaseConnection
	secrets secret.SecretStore
	open    sourceOpener

	mu     sync.Mutex
	active map[string]*sourceEntry
}

type sourceEntry struct {
	source    dbclient.Source
	createdAt time.Time
}

// NewSourceService creates a SourceService over the configured connections.
func NewSourceService(conns []domain.DatabaseConnection, secrets secret.SecretStore) *SourceService {
	byName := make(map[string]domain.DatabaseConnection, len(conns))
	for _, c := range conns {
		byName[c.Name] = c
	}
	return &SourceService{
		conns:   byName,
		secrets: secrets,
		open:    dbclient.NewSource,
		active:  make(map[string]*sourceEntry),
	}
}

// ListConnections returns the configured connections ordered by name.
func (s *SourceService) ListConnections() []domain.DatabaseConnection {
	out := make([]domain.DatabaseConnection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListSource returns the list store of a configured source.
func (s *SourceService) ListSource(ctx context.Context, name string) (domain.ListStore, error) {
	return s.getOrCreate(name)
}

// TestConnection pings a configured source.
func (s *SourceService) TestConnection(ctx context.Context, name string) error {
	src, err := s.getOrCreate(name)
	if err != nil {
		return err
	}
	return src.TestConnection(ctx)
}

// Introspect returns the tables (or collections) of a configured source.
func (s *SourceService) Introspect(ctx context.Context, name string) (*dbclient.SchemaInfo, error) {
	src, err := s.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	return src.Introspect(ctx)
}

// ── Connection Pool ────────────────────────────────────────

func (s *SourceService) getOrCreate(name string) (dbclient.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.active[name]; ok {
		return e.source, nil
	}

	conn, ok := s.conns[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}

	var password string
	if s.secrets != nil && conn.PasswordKey != "" {
		pw, err := s.secrets.Get(conn.PasswordKey)
		if err != nil {
			return nil, fmt.Errorf("source %s password: %w", name, err)
		}
		password = string(pw)
	}

	src, err := s.open(&conn, password)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", name, err)
	}
	s.active[name] = &sourceEntry{source: src, createdAt: time.Now()}
	log.Printf("[SOURCES] opened %s (%s)", name, conn.Driver)
	return src, nil
}

// Close tears down all live source connections.
func (s *SourceService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.active {
		if err := e.source.Close(); err != nil {
			log.Printf("[SOURCES] close %s: %v", name, err)
		}
		delete(s.active, name)
	}
}
