package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrListNotFound means no list title matched the requested name.
	ErrListNotFound = errors.New("list not found")

	// ErrListAmbiguous means more than one list title matched the requested name.
	ErrListAmbiguous = errors.New("ambiguous list name")

	// ErrFieldTypeMismatch means a visibility field is not declared boolean.
	// It aborts the whole synchronization of a form.
	ErrFieldTypeMismatch = errors.New("field type mismatch")
)

// LookupError reports a failed list-name resolution.
type LookupError struct {
	Name    string
	Matches []string
	Err     error
}

func (e *LookupError) Error() string {
	if len(e.Matches) > 0 {
		return fmt.Sprintf("%s: %q matches %q", e.Err, e.Name, e.Matches)
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Name)
}

func (e *LookupError) Unwrap() error { return e.Err }

// FieldTypeError reports a visibility field whose declared type is not boolean.
type FieldTypeError struct {
	ItemID string
	Field  string
	Type   FieldType
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("item %s: field %q is %s, not boolean", e.ItemID, e.Field, e.Type)
}

func (e *FieldTypeError) Unwrap() error { return ErrFieldTypeMismatch }
