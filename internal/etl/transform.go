package etl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify records in-flight between source and destination.
// Each takes a record and returns a (possibly modified) record and whether
// to keep it.
//
// Pattern: Benthos processor chain.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition.
type TransformConfig struct {
	Type   string         `json:"type" yaml:"type"` // "filter" | "rename" | "select" | "sort" | "limit" | "type_cast"
	Config map[string]any `json:"config" yaml:"config"`
}

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform drops records where the given field does not match the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "gt" | "lt" | "contains"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	switch t.Op {
	case "eq":
		return r, cast.ToString(v) == cast.ToString(t.Value)
	case "neq":
		return r, cast.ToString(v) != cast.ToString(t.Value)
	case "contains":
		return r, strings.Contains(cast.ToString(v), cast.ToString(t.Value))
	case "gt":
		return r, cast.ToFloat64(v) > cast.ToFloat64(t.Value)
	case "lt":
		return r, cast.ToFloat64(v) < cast.ToFloat64(t.Value)
	default:
		return r, true
	}
}

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	renamed := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		if to, ok := t.Mapping[k]; ok {
			k = to
		}
		renamed[k] = v
	}
	r.Data = renamed
	return r, true
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true
}

// DedupeTransform drops records with duplicate values for the given key.
type DedupeTransform struct {
	Key  string
	seen map[string]bool
}

func NewDedupeTransform(key string) *DedupeTransform {
	return &DedupeTransform{Key: key, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	v := cast.ToString(r.Data[t.Key])
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// SortTransform sorts all collected records by a field.
// It is a batch transform: the engine applies it after the streaming phase.
type SortTransform struct {
	Field     string
	Direction string // "asc" | "desc"
}

func (t *SortTransform) Transform(r Record) (Record, bool) {
	return r, true
}

// LimitTransform caps the number of records.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool) {
	t.seen++
	return r, t.seen <= t.Count
}

// TypeCastTransform converts a field's value to a target type.
type TypeCastTransform struct {
	Field    string
	CastType string // "number" | "string" | "bool"
}

func (t *TypeCastTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, true
	}
	switch t.CastType {
	case "number":
		r.Data[t.Field] = cast.ToFloat64(v)
	case "string":
		r.Data[t.Field] = cast.ToString(v)
	case "bool":
		r.Data[t.Field] = cast.ToBool(v)
	}
	return r, true
}

// ── Chain construction ─────────────────────────────────────

// BuildTransformers converts declarative TransformConfig into Transformer instances.
// Unknown or incomplete entries are skipped.
func BuildTransformers(configs []TransformConfig, dedupeKey string) []Transformer {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "filter":
			field := cast.ToString(tc.Config["field"])
			op := cast.ToString(tc.Config["op"])
			if field != "" && op != "" {
				ts = append(ts, &FilterTransform{Field: field, Op: op, Value: tc.Config["value"]})
			}

		case "rename":
			if mapping, err := cast.ToStringMapStringE(tc.Config["mapping"]); err == nil && len(mapping) > 0 {
				ts = append(ts, &RenameTransform{Mapping: mapping})
			}

		case "select":
			if fields, err := cast.ToStringSliceE(tc.Config["fields"]); err == nil && len(fields) > 0 {
				ts = append(ts, &SelectTransform{Fields: fields})
			}

		case "sort":
			field := cast.ToString(tc.Config["field"])
			direction := cast.ToString(tc.Config["direction"])
			if direction == "" {
				direction = "asc"
			}
			if field != "" {
				ts = append(ts, &SortTransform{Field: field, Direction: direction})
			}

		case "limit":
			if count := cast.ToInt(tc.Config["count"]); count > 0 {
				ts = append(ts, NewLimitTransform(count))
			}

		case "type_cast":
			field := cast.ToString(tc.Config["field"])
			castType := cast.ToString(tc.Config["castType"])
			if field != "" && castType != "" {
				ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})
			}
		}
	}

	// Dedupe is always applied last if a key is specified.
	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(dedupeKey))
	}

	return ts
}

// ValidateTransforms reports the first transform with an unknown type.
func ValidateTransforms(configs []TransformConfig) error {
	for i, tc := range configs {
		switch tc.Type {
		case "filter", "rename", "select", "sort", "limit", "type_cast":
		default:
			return fmt.Errorf("transform %d: unknown type %q", i, tc.Type)
		}
	}
	return nil
}

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// ── Batch Transforms ──────────────────────────────────────

// ApplyBatchSort sorts records if a SortTransform exists in the chain.
func ApplyBatchSort(records []Record, ts []Transformer) []Record {
	for _, t := range ts {
		if st, ok := t.(*SortTransform); ok && st.Field != "" {
			sorted := make([]Record, len(records))
			copy(sorted, records)
			dir := 1
			if st.Direction == "desc" {
				dir = -1
			}
			sort.SliceStable(sorted, func(i, j int) bool {
				return compareValues(sorted[i].Data[st.Field], sorted[j].Data[st.Field])*dir < 0
			})
			return sorted
		}
	}
	return records
}

func compareValues(a, b any) int {
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}
