package form

import "strings"

// DefaultPrefixLength is the width of the widget-type prefix ("ddl", "pnl", "lbl").
const DefaultPrefixLength = 3

// NormalizeControlName turns a client id into the token used to join controls
// with list fields: the last id segment, without its widget prefix, uppercased.
//
//	NormalizeControlName("Org_ucManualPayment_ddlSubCode", 3) == "SUBCODE"
func NormalizeControlName(clientID string, prefixLen int) string {
	name := clientID
	if i := strings.LastIndex(name, IDSeparator); i >= 0 {
		name = name[i+len(IDSeparator):]
	}
	if prefixLen < 0 {
		prefixLen = 0
	}
	if prefixLen >= len(name) {
		return ""
	}
	return strings.ToUpper(name[prefixLen:])
}

// ControlToken is NormalizeControlName with the default prefix length.
func ControlToken(clientID string) string {
	return NormalizeControlName(clientID, DefaultPrefixLength)
}
