package domain

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// FieldType defines the declared data type of a list field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeChoice      FieldType = "choice"
	FieldTypeMultiChoice FieldType = "multichoice"
	FieldTypeLookup      FieldType = "lookup"
)

// Well-known field names shared by every option-bearing list.
const (
	FieldCode      = "Code"
	FieldName      = "Name"
	FieldSortOrder = "Sort Order"
)

// Field describes a single column of a list.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// List is a named collection of items sharing one ordered schema.
type List struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Fields    []Field   `json:"fields"`
	Source    string    `json:"source,omitempty"` // import job that last wrote the list
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a single list record. Fields carries the list schema in declaration
// order so callers can walk the values deterministically.
type Item struct {
	ID        string         `json:"id"`
	ListID    string         `json:"listId"`
	Fields    []Field        `json:"fields,omitempty"`
	Data      map[string]any `json:"data"`
	SortOrder int            `json:"sortOrder"`
}

// Raw returns the stored value for a field, or nil.
func (it *Item) Raw(name string) any {
	if it == nil || it.Data == nil {
		return nil
	}
	return it.Data[name]
}

// Value renders a field as a trimmed string. Lookup values are stored as
// "type;#value" by some backends; only the part after the first '#' is kept.
func (it *Item) Value(name string) string {
	v := it.Raw(name)
	if v == nil {
		return ""
	}
	var s string
	switch val := v.(type) {
	case []any, []string:
		parts, err := cast.ToStringSliceE(val)
		if err != nil {
			return ""
		}
		s = strings.Join(parts, ",")
	default:
		str, err := cast.ToStringE(val)
		if err != nil {
			return ""
		}
		s = str
	}
	if strings.Contains(s, ";#") {
		s = strings.SplitN(s, "#", 3)[1]
	}
	return strings.TrimSpace(s)
}

// Code is shorthand for Value(FieldCode).
func (it *Item) Code() string { return it.Value(FieldCode) }

// Name is shorthand for Value(FieldName).
func (it *Item) Name() string { return it.Value(FieldName) }

// FieldType returns the declared type of a field, text when undeclared.
func (it *Item) FieldType(name string) FieldType {
	for _, f := range it.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return FieldTypeText
}

// FieldNames returns the item's field names in schema order, followed by any
// data keys missing from the schema in sorted order.
func (it *Item) FieldNames() []string {
	seen := make(map[string]bool, len(it.Fields))
	names := make([]string, 0, len(it.Data))
	for _, f := range it.Fields {
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	var extra []string
	for k := range it.Data {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// SortKey parses the item's Sort Order field.
func (it *Item) SortKey() (int, bool) {
	s := it.Value(FieldSortOrder)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		n = int(f)
	}
	return n, true
}

// SortItemsBy stably sorts items ascending by the given field. Numeric values
// compare numerically; items without a value keep their relative order at the end.
func SortItemsBy(items []Item, field string) {
	if field == "" {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Value(field), items[j].Value(field)
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		fa, errA := strconv.ParseFloat(a, 64)
		fb, errB := strconv.ParseFloat(b, 64)
		if errA == nil && errB == nil {
			return fa < fb
		}
		return a < b
	})
}

// ListStore is the storage collaborator the binding layer reads lists from.
type ListStore interface {
	// ListLists returns every list with its schema.
	ListLists(ctx context.Context) ([]List, error)

	// GetList returns the list with exactly this title.
	GetList(ctx context.Context, title string) (*List, error)

	// GetItems returns all items of a list ordered by orderBy (store order when empty).
	GetItems(ctx context.Context, listID, orderBy string) ([]Item, error)

	// GetItemsFiltered returns the items whose field value contains the given text.
	GetItemsFiltered(ctx context.Context, listID, field, contains string) ([]Item, error)
}
