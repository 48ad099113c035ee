package service

import (
	"context"
	"log"

	"listbind/internal/domain"
	"listbind/internal/form"
	"listbind/internal/metrics"
)

// SelectionService handles selection changes on list-bound drop-downs.
type SelectionService struct {
	lists   *ListService
	sync    *Synchronizer
	metrics *metrics.Metrics
}

// NewSelectionService creates a SelectionService.
func NewSelectionService(lists *ListService, sync *Synchronizer, m *metrics.Metrics) *SelectionService {
	return &SelectionService{lists: lists, sync: sync, metrics: m}
}

// OnSelectionChanged records value as the control's selection, finds the item
// of the control's backing list whose Code equals value and synchronizes root
// with it.
//
// An unresolvable backing list or an unknown code is not an error: the call
// does nothing and returns a nil Result. Errors of the synchronization itself
// are returned.
func (s *SelectionService) OnSelectionChanged(ctx context.Context, root form.Node, control *form.Control, value string) (*Result, error) {
	control.Select(value)

	l, items, err := s.lists.ResolveControl(ctx, control)
	if err != nil {
		log.Printf("[SELECT] %s: no backing list: %v", control.ClientID(), err)
		s.metrics.LookupSkipped()
		s.metrics.SelectionChanged(nil)
		return nil, nil
	}

	item := findByCode(items, value)
	if item == nil {
		log.Printf("[SELECT] %s: no item with code %q in %s", control.ClientID(), value, l.Title)
		s.metrics.SelectionChanged(nil)
		return nil, nil
	}

	res, err := s.sync.Synchronize(ctx, item, root)
	s.metrics.SelectionChanged(err)
	return res, err
}

func findByCode(items []domain.Item, code string) *domain.Item {
	for i := range items {
		if items[i].Code() == code {
			return &items[i]
		}
	}
	return nil
}
