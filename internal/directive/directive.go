// Package directive classifies list fields by the keywords embedded in their names.
//
// A field named "AP Show Sub Codes" carries a visibility directive targeting
// the panel whose control token is contained in "SUBCODES". A field named
// "Available Sub Code" carries an availability directive targeting drop-downs
// matching "SUBCODE", fed from the related list "Sub Code".
package directive

import (
	"strings"
	"unicode"

	"github.com/spf13/cast"
)

// Keywords recognised in field names. Matching is case-sensitive.
const (
	KeywordShow      = "Show"
	KeywordAvailable = "Available"

	// AllCodes is the availability value that admits every related item.
	AllCodes = "ALL"
)

// Kind is a bit set of the directives a field name carries.
type Kind uint8

const (
	KindNone       Kind = 0
	KindVisibility Kind = 1 << iota
	KindAvailability
)

// Has reports whether k includes every bit of other.
func (k Kind) Has(other Kind) bool {
	return other != KindNone && k&other == other
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindVisibility:
		return "visibility"
	case KindAvailability:
		return "availability"
	case KindVisibility | KindAvailability:
		return "visibility+availability"
	default:
		return "unknown"
	}
}

// Directive is the classification of one (field name, value) pair.
type Directive struct {
	Field string `json:"field"`
	Kind  Kind   `json:"kind"`
	Value any    `json:"value"`
}

// Classify derives the directive carried by a field. It never fails.
func Classify(fieldName string, rawValue any) Directive {
	d := Directive{Field: fieldName, Value: rawValue}
	if strings.Contains(fieldName, KeywordShow) {
		d.Kind |= KindVisibility
	}
	if strings.Contains(fieldName, KeywordAvailable) {
		d.Kind |= KindAvailability
	}
	return d
}

// Target returns the token controls are matched against for the given kind:
// the field name after the kind's keyword, whitespace removed, uppercased.
// It is empty when the field does not carry that kind.
func (d Directive) Target(kind Kind) string {
	var keyword string
	switch kind {
	case KindVisibility:
		keyword = KeywordShow
	case KindAvailability:
		keyword = KeywordAvailable
	default:
		return ""
	}
	idx := strings.Index(d.Field, keyword)
	if idx < 0 {
		return ""
	}
	return Normalize(d.Field[idx+len(keyword):])
}

// Matches reports whether a control token is addressed by this directive.
// Empty tokens never match.
func (d Directive) Matches(kind Kind, controlToken string) bool {
	if controlToken == "" || !d.Kind.Has(kind) {
		return false
	}
	return strings.Contains(d.Target(kind), controlToken)
}

// RelatedList returns the title of the list feeding an availability directive:
// the field name with its first whitespace-delimited "Available" token removed.
func (d Directive) RelatedList() string {
	words := strings.Fields(d.Field)
	for i, w := range words {
		if w == KeywordAvailable {
			return strings.Join(append(words[:i:i], words[i+1:]...), " ")
		}
	}
	// Keyword glued to the next word, e.g. "AvailableSubCode".
	if idx := strings.Index(d.Field, KeywordAvailable); idx >= 0 {
		return strings.TrimSpace(d.Field[:idx] + d.Field[idx+len(KeywordAvailable):])
	}
	return d.Field
}

// Normalize strips all whitespace and uppercases s.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// CoerceBool converts a visibility value to a boolean. When the value cannot
// be parsed it returns (true, false): unparseable values show the panel.
func CoerceBool(raw any) (value bool, ok bool) {
	if s, isStr := raw.(string); isStr {
		raw = strings.TrimSpace(s)
	}
	if raw == nil || raw == "" {
		return true, false
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return true, false
	}
	return v, true
}

// ParseCodes splits an availability value into its code set. A nil result
// means every related item is admitted (empty value or the literal ALL).
// Duplicates and order are preserved.
func ParseCodes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == AllCodes {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		codes = append(codes, strings.TrimSpace(p))
	}
	return codes
}
