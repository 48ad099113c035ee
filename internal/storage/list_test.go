package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listbind/internal/domain"
)

func newTestStore(t *testing.T) *ListStore {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "listbind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewListStore(db)
}

func subCodeFields() []domain.Field {
	return []domain.Field{
		{Name: domain.FieldCode, Type: domain.FieldTypeText},
		{Name: domain.FieldName, Type: domain.FieldTypeText},
		{Name: domain.FieldSortOrder, Type: domain.FieldTypeNumber},
		{Name: "Show Notes", Type: domain.FieldTypeBoolean},
	}
}

func TestNew_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "listbind.db")
	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestListStore_CreateAndGetList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	l := &domain.List{Title: "Sub Codes", Fields: subCodeFields()}
	require.NoError(t, s.CreateList(ctx, l))
	assert.NotEmpty(t, l.ID)

	got, err := s.GetList(ctx, "Sub Codes")
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, subCodeFields(), got.Fields)

	_, err = s.GetList(ctx, "Sub Code")
	assert.ErrorIs(t, err, domain.ErrListNotFound)

	assert.Error(t, s.CreateList(ctx, &domain.List{Title: "Sub Codes"}), "titles are unique")
}

func TestListStore_ListLists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateList(ctx, &domain.List{Title: "Zones"}))
	require.NoError(t, s.CreateList(ctx, &domain.List{Title: "Accounts", Fields: subCodeFields()}))

	lists, err := s.ListLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "Accounts", lists[0].Title)
	assert.Len(t, lists[0].Fields, 4)
	assert.Empty(t, lists[1].Fields)
}

func TestListStore_EnsureList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.EnsureList(ctx, "Regions", nil)
	require.NoError(t, err)
	b, err := s.EnsureList(ctx, "Regions", subCodeFields())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	got, err := s.GetList(ctx, "Regions")
	require.NoError(t, err)
	assert.Len(t, got.Fields, 4)

	require.NoError(t, s.SetSource(ctx, got.ID, "regions-mirror"))
	got, err = s.GetList(ctx, "Regions")
	require.NoError(t, err)
	assert.Equal(t, "regions-mirror", got.Source)
}

func TestListStore_ItemsOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	l := &domain.List{Title: "Sub Codes", Fields: subCodeFields()}
	require.NoError(t, s.CreateList(ctx, l))

	items := []domain.Item{
		{Data: map[string]any{"Code": "C", "Name": "Gamma", "Sort Order": 3}},
		{Data: map[string]any{"Code": "A", "Name": "Alpha", "Sort Order": 1}},
		{Data: map[string]any{"Code": "X", "Name": "Unsorted"}},
		{Data: map[string]any{"Code": "B", "Name": "Beta", "Sort Order": "2"}},
	}
	require.NoError(t, s.ReplaceItems(ctx, l.ID, items))

	stored, err := s.GetItems(ctx, l.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "X", "B"}, codes(stored))
	assert.Equal(t, subCodeFields(), stored[0].Fields)

	sorted, err := s.GetItems(ctx, l.ID, domain.FieldSortOrder)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "X"}, codes(sorted))
	assert.Equal(t, 1, sorted[0].SortOrder)

	byName, err := s.GetItems(ctx, l.ID, domain.FieldName)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "X"}, codes(byName))

	require.NoError(t, s.ReplaceItems(ctx, l.ID, items[:1]))
	stored, err = s.GetItems(ctx, l.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, codes(stored))
}

func TestListStore_GetItemsFiltered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	l := &domain.List{Title: "GL Accounts", Fields: subCodeFields()}
	require.NoError(t, s.CreateList(ctx, l))
	for _, it := range []domain.Item{
		{ListID: l.ID, Data: map[string]any{"Code": "4000", "Name": "Travel Expense"}},
		{ListID: l.ID, Data: map[string]any{"Code": "4100", "Name": "Office supplies"}},
		{ListID: l.ID, Data: map[string]any{"Code": "4200", "Name": "Expense refunds"}},
	} {
		it := it
		require.NoError(t, s.CreateItem(ctx, &it))
	}

	got, err := s.GetItemsFiltered(ctx, l.ID, domain.FieldName, "expense")
	require.NoError(t, err)
	assert.Equal(t, []string{"4000", "4200"}, codes(got))

	got, err = s.GetItemsFiltered(ctx, l.ID, "Missing Field", "x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListStore_DeleteList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	l := &domain.List{Title: "Temp", Fields: subCodeFields()}
	require.NoError(t, s.CreateList(ctx, l))
	require.NoError(t, s.CreateItem(ctx, &domain.Item{ListID: l.ID, Data: map[string]any{"Code": "A"}}))

	require.NoError(t, s.DeleteList(ctx, l.ID))
	_, err := s.GetList(ctx, "Temp")
	assert.ErrorIs(t, err, domain.ErrListNotFound)

	items, err := s.GetItems(ctx, l.ID, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListStore_Fingerprint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0::0", empty)

	l := &domain.List{Title: "Temp", Fields: subCodeFields()}
	require.NoError(t, s.CreateList(ctx, l))
	created, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, empty, created)

	require.NoError(t, s.CreateItem(ctx, &domain.Item{ListID: l.ID, Data: map[string]any{"Code": "A"}}))
	withItem, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, created, withItem, "item writes change the fingerprint")

	again, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, withItem, again)
}

func codes(items []domain.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Code()
	}
	return out
}
