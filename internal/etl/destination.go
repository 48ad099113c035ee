package etl

import (
	"context"
	"fmt"

	"listbind/internal/domain"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes records into a target list.
//
// Pattern: Singer target protocol.

// SyncMode determines how records are written to the destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // delete all existing items, insert fresh
	SyncAppend  SyncMode = "append"  // add items without deleting existing
)

// Destination writes records to a target system.
type Destination interface {
	Write(ctx context.Context, target string, schema *Schema, records []Record, mode SyncMode) (int, error)
}

// ListWriterStore is the part of the local list store the writer needs.
type ListWriterStore interface {
	EnsureList(ctx context.Context, title string, fields []domain.Field) (*domain.List, error)
	ReplaceItems(ctx context.Context, listID string, items []domain.Item) error
	CreateItem(ctx context.Context, it *domain.Item) error
	SetSource(ctx context.Context, listID, source string) error
}

// ── List Destination ───────────────────────────────────────

// ListWriter implements Destination over the local list store. The target is
// a list title; the list is created on first write.
type ListWriter struct {
	Store ListWriterStore
	// Source tags written lists with the job that produced them.
	Source string
}

func (w *ListWriter) Write(ctx context.Context, target string, schema *Schema, records []Record, mode SyncMode) (int, error) {
	if target == "" {
		return 0, fmt.Errorf("target list is required")
	}

	var fields []domain.Field
	if schema != nil {
		fields = schema.Fields
	}
	if mode == SyncAppend {
		existing, err := w.Store.EnsureList(ctx, target, nil)
		if err != nil {
			return 0, fmt.Errorf("ensure list: %w", err)
		}
		fields = mergeFields(existing.Fields, fields)
	}

	// The schema is reset to the output schema in replace mode.
	list, err := w.Store.EnsureList(ctx, target, fields)
	if err != nil {
		return 0, fmt.Errorf("ensure list: %w", err)
	}
	if w.Source != "" {
		if err := w.Store.SetSource(ctx, list.ID, w.Source); err != nil {
			return 0, fmt.Errorf("tag list source: %w", err)
		}
	}

	items := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, domain.Item{ListID: list.ID, Fields: list.Fields, Data: rec.Data})
	}

	if mode != SyncAppend {
		if err := w.Store.ReplaceItems(ctx, list.ID, items); err != nil {
			return 0, fmt.Errorf("replace items: %w", err)
		}
		return len(items), nil
	}

	written := 0
	for i := range items {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}
		if err := w.Store.CreateItem(ctx, &items[i]); err != nil {
			return written, fmt.Errorf("create item %d: %w", i, err)
		}
		written++
	}
	return written, nil
}

// mergeFields appends the fields of extra missing from base.
func mergeFields(base, extra []domain.Field) []domain.Field {
	seen := make(map[string]bool, len(base))
	out := append([]domain.Field(nil), base...)
	for _, f := range base {
		seen[f.Name] = true
	}
	for _, f := range extra {
		if !seen[f.Name] {
			seen[f.Name] = true
			out = append(out, f)
		}
	}
	return out
}
