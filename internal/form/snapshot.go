package form

import "listbind/internal/domain"

// ControlState is the serialisable state of one control.
type ControlState struct {
	ID       string          `json:"id"`
	ClientID string          `json:"clientId"`
	Kind     Kind            `json:"kind"`
	Visible  bool            `json:"visible"`
	Selected string          `json:"selected,omitempty"`
	Options  []domain.Option `json:"options,omitempty"`
	Controls []ControlState  `json:"controls,omitempty"`
}

// Snapshot captures the state of c and its subtree.
func Snapshot(c *Control) ControlState {
	st := ControlState{
		ID:       c.ID,
		ClientID: c.ClientID(),
		Kind:     c.Kind(),
		Visible:  c.Visible(),
	}
	if c.Kind() == KindDropDown {
		st.Selected = c.Selected()
		st.Options = c.Options()
	}
	for _, ch := range c.children {
		st.Controls = append(st.Controls, Snapshot(ch))
	}
	return st
}
