package app

import (
	"context"

	"listbind/internal/domain"
)

// ============================================================
// Lists & Forms
// ============================================================

// Lists returns every local list.
func (a *App) Lists(ctx context.Context) ([]domain.List, error) {
	return a.listSvc.ListLists(ctx)
}

// ResolveList resolves a loose list name the way drop-downs are bound.
func (a *App) ResolveList(ctx context.Context, name string) (*domain.List, []domain.Item, error) {
	return a.listSvc.ResolveList(ctx, name)
}

// Forms returns the ids of the loaded form definitions.
func (a *App) Forms() []string {
	return a.formSvc.Forms()
}
