package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"listbind/internal/domain"
	"listbind/internal/form"
)

// memStore is an in-memory domain.ListStore.
type memStore struct {
	lists []domain.List
	items map[string][]domain.Item
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string][]domain.Item)}
}

// add creates a list whose id is its title, with one item per row.
func (m *memStore) add(title string, fields []domain.Field, rows ...map[string]any) *memStore {
	m.lists = append(m.lists, domain.List{ID: title, Title: title, Fields: fields})
	for i, row := range rows {
		m.items[title] = append(m.items[title], domain.Item{
			ID:     title + "#" + string(rune('1'+i)),
			ListID: title,
			Fields: fields,
			Data:   row,
		})
	}
	return m
}

func (m *memStore) ListLists(context.Context) ([]domain.List, error) {
	return append([]domain.List(nil), m.lists...), nil
}

func (m *memStore) GetList(_ context.Context, title string) (*domain.List, error) {
	for _, l := range m.lists {
		if l.Title == title {
			l := l
			return &l, nil
		}
	}
	return nil, &domain.LookupError{Name: title, Err: domain.ErrListNotFound}
}

func (m *memStore) GetItems(_ context.Context, listID, orderBy string) ([]domain.Item, error) {
	out := append([]domain.Item(nil), m.items[listID]...)
	domain.SortItemsBy(out, orderBy)
	return out, nil
}

func (m *memStore) GetItemsFiltered(_ context.Context, listID, field, contains string) ([]domain.Item, error) {
	var out []domain.Item
	for _, it := range m.items[listID] {
		if strings.Contains(strings.ToLower(it.Value(field)), strings.ToLower(contains)) {
			out = append(out, it)
		}
	}
	return out, nil
}

var (
	glAccountFields = []domain.Field{
		{Name: domain.FieldCode, Type: domain.FieldTypeText},
		{Name: domain.FieldName, Type: domain.FieldTypeText},
		{Name: "AP Show Sub Codes", Type: domain.FieldTypeBoolean},
		{Name: "Available Sub Code", Type: domain.FieldTypeText},
		{Name: domain.FieldSortOrder, Type: domain.FieldTypeNumber},
	}
	subCodeFields = []domain.Field{
		{Name: domain.FieldCode, Type: domain.FieldTypeText},
		{Name: domain.FieldName, Type: domain.FieldTypeText},
		{Name: domain.FieldSortOrder, Type: domain.FieldTypeNumber},
	}
)

// paymentStore holds the lists behind the manual payment form.
func paymentStore() *memStore {
	return newMemStore().
		add("AP GL Accounts", glAccountFields,
			map[string]any{"Code": "6000", "Name": "Freight", "AP Show Sub Codes": "true", "Available Sub Code": "T.C,T.D", "Sort Order": 1},
			map[string]any{"Code": "6100", "Name": "string;#Duty", "AP Show Sub Codes": "false", "Available Sub Code": "ALL", "Sort Order": 2},
			map[string]any{"Code": "6200", "Name": "Misc", "AP Show Sub Codes": "maybe", "Available Sub Code": "T.X", "Sort Order": 3},
		).
		add("Sub Codes", subCodeFields,
			map[string]any{"Code": "T.C", "Name": "Cost", "Sort Order": 2},
			map[string]any{"Code": "T.D", "Name": "Duty", "Sort Order": 1},
			map[string]any{"Code": "T.E", "Name": "Extra", "Sort Order": 3},
		)
}

const manualPaymentYAML = `
id: ucManualPayment
root: Org
controls:
  - id: ddlGLAccount
    kind: dropdown
    list: AP GL Accounts
  - id: pnlSubCodes
    kind: panel
    controls:
      - id: ddlSubCode
        kind: dropdown
      - id: lblSubCode
        kind: label
  - id: ddlCurrency
    kind: dropdown
  - id: pnlNotes
    kind: panel
    hidden: true
`

func manualPayment(t *testing.T) *form.Definition {
	t.Helper()
	def, err := form.ParseDefinition([]byte(manualPaymentYAML))
	require.NoError(t, err)
	return def
}

func codesOf(opts []domain.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Code
	}
	return out
}

func intPtr(n int) *int { return &n }
