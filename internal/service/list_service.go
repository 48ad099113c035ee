package service

import (
	"context"
	"fmt"
	"strings"

	"listbind/internal/directive"
	"listbind/internal/domain"
	"listbind/internal/form"
)

// ─────────────────────────────────────────────────────────────
// List Service — list-name resolution and option building
// ─────────────────────────────────────────────────────────────

// ListService resolves lists by loose name and turns their items into options.
type ListService struct {
	store domain.ListStore
}

// NewListService creates a ListService over a list store.
func NewListService(store domain.ListStore) *ListService {
	return &ListService{store: store}
}

// Store returns the backing list store.
func (s *ListService) Store() domain.ListStore {
	return s.store
}

// ListLists returns every list of the store.
func (s *ListService) ListLists(ctx context.Context) ([]domain.List, error) {
	return s.store.ListLists(ctx)
}

// Items returns the items of the list with exactly this title, in Sort Order.
func (s *ListService) Items(ctx context.Context, title string) ([]domain.Item, error) {
	l, err := s.store.GetList(ctx, title)
	if err != nil {
		return nil, err
	}
	return s.store.GetItems(ctx, l.ID, domain.FieldSortOrder)
}

// ── Name resolution ────────────────────────────────────────

// titleMatches reports whether a list title answers to a requested token: the
// normalised title ends with it, or does so once its final character (a
// plural "s") is dropped.
func titleMatches(title, token string) bool {
	t := directive.Normalize(title)
	if strings.HasSuffix(t, token) {
		return true
	}
	return len(t) > 0 && strings.HasSuffix(t[:len(t)-1], token)
}

// FindList resolves a loosely named list. Zero matches fail with
// domain.ErrListNotFound, several with domain.ErrListAmbiguous.
func (s *ListService) FindList(ctx context.Context, name string) (*domain.List, error) {
	token := directive.Normalize(name)
	if token == "" {
		return nil, &domain.LookupError{Name: name, Err: domain.ErrListNotFound}
	}

	lists, err := s.store.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}

	var matches []domain.List
	for _, l := range lists {
		if titleMatches(l.Title, token) {
			matches = append(matches, l)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &domain.LookupError{Name: name, Err: domain.ErrListNotFound}
	case 1:
		return &matches[0], nil
	default:
		titles := make([]string, len(matches))
		for i, m := range matches {
			titles[i] = m.Title
		}
		return nil, &domain.LookupError{Name: name, Matches: titles, Err: domain.ErrListAmbiguous}
	}
}

// ResolveList resolves a loosely named list and returns it with its items in
// Sort Order.
func (s *ListService) ResolveList(ctx context.Context, name string) (*domain.List, []domain.Item, error) {
	l, err := s.FindList(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetItems(ctx, l.ID, domain.FieldSortOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("items of %s: %w", l.Title, err)
	}
	return l, items, nil
}

// ResolveItemsByField returns the items of the list with exactly this title
// whose field contains the text (case-insensitive), in Sort Order.
func (s *ListService) ResolveItemsByField(ctx context.Context, listName, field, contains string) ([]domain.Item, error) {
	l, err := s.store.GetList(ctx, listName)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetItemsFiltered(ctx, l.ID, field, contains)
	if err != nil {
		return nil, fmt.Errorf("filter %s by %s: %w", l.Title, field, err)
	}
	domain.SortItemsBy(items, domain.FieldSortOrder)
	return items, nil
}

// ResolveControl resolves the list backing a control: the list it names
// explicitly, else the one its control token answers to.
func (s *ListService) ResolveControl(ctx context.Context, c *form.Control) (*domain.List, []domain.Item, error) {
	name := c.List
	if name == "" {
		name = form.ControlToken(c.ClientID())
	}
	return s.ResolveList(ctx, name)
}

// ResolveFieldsByControl returns the schema of the list a control resolves to.
func (s *ListService) ResolveFieldsByControl(ctx context.Context, clientID string) ([]domain.Field, error) {
	l, err := s.FindList(ctx, form.ControlToken(clientID))
	if err != nil {
		return nil, err
	}
	return l.Fields, nil
}

// ── Options ────────────────────────────────────────────────

// Options returns the items of a list as options, in Sort Order.
func (s *ListService) Options(ctx context.Context, title string) ([]domain.Option, error) {
	items, err := s.Items(ctx, title)
	if err != nil {
		return nil, err
	}
	return optionsOf(items), nil
}

// OptionsFiltered returns the options of the items whose field contains value.
func (s *ListService) OptionsFiltered(ctx context.Context, title, field, value string) ([]domain.Option, error) {
	items, err := s.ResolveItemsByField(ctx, title, field, value)
	if err != nil {
		return nil, err
	}
	return optionsOf(items), nil
}

// OptionsByCodes returns the option set a drop-down is bound to when fed by
// the list with exactly this title and restricted to codes (nil admits all).
func (s *ListService) OptionsByCodes(ctx context.Context, title string, codes []string) ([]domain.Option, error) {
	items, err := s.Items(ctx, title)
	if err != nil {
		return nil, err
	}
	return BuildOptions(items, codes), nil
}

func optionsOf(items []domain.Item) []domain.Option {
	opts := make([]domain.Option, 0, len(items))
	for i := range items {
		opts = append(opts, domain.OptionFromItem(&items[i]))
	}
	return opts
}
