package sources

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cast"

	"listbind/internal/domain"
	"listbind/internal/etl"
)

// ── List Source ────────────────────────────────────────────
// Mirrors a list (table or collection) of a configured external source.

// ListProvider resolves a configured external source by name.
// The app layer implements this and injects it at startup.
type ListProvider interface {
	ListSource(ctx context.Context, name string) (domain.ListStore, error)
}

var (
	providerMu   sync.RWMutex
	listProvider ListProvider
)

// SetListProvider is called by the app at startup.
func SetListProvider(p ListProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	listProvider = p
}

func currentProvider() (ListProvider, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if listProvider == nil {
		return nil, fmt.Errorf("list provider not initialized")
	}
	return listProvider, nil
}

type listSource struct{}

func init() { etl.RegisterSource(&listSource{}) }

func (s *listSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "list",
		Label: "External List",
		ConfigFields: []etl.ConfigField{
			{Key: "source", Label: "Source", Required: true, Help: "Name of a configured external source"},
			{Key: "list", Label: "List", Required: true, Help: "Table or collection to mirror"},
			{Key: "orderBy", Label: "Order By", Help: "Field to order the mirrored items by"},
		},
	}
}

func resolveList(ctx context.Context, cfg etl.SourceConfig) (domain.ListStore, *domain.List, error) {
	name := cast.ToString(cfg["source"])
	title := cast.ToString(cfg["list"])
	if name == "" || title == "" {
		return nil, nil, fmt.Errorf("source and list are required")
	}
	p, err := currentProvider()
	if err != nil {
		return nil, nil, err
	}
	store, err := p.ListSource(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", name, err)
	}
	l, err := store.GetList(ctx, title)
	if err != nil {
		return nil, nil, err
	}
	return store, l, nil
}

func (s *listSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	_, l, err := resolveList(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &etl.Schema{Fields: l.Fields}, nil
}

func (s *listSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return streamRecords(ctx, func() ([]etl.Record, error) {
		store, l, err := resolveList(ctx, cfg)
		if err != nil {
			return nil, err
		}
		items, err := store.GetItems(ctx, l.ID, cast.ToString(cfg["orderBy"]))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.Title, err)
		}
		records := make([]etl.Record, len(items))
		for i, it := range items {
			records[i] = etl.Record{Data: it.Data}
		}
		return records, nil
	})
}
