package etl

import "listbind/internal/domain"

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All sources emit Records, the list writer consumes them.

// Schema describes the shape of records coming from a source.
type Schema struct {
	Fields []domain.Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (domain.Field, bool) {
	if s == nil {
		return domain.Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.Field{}, false
}

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}
