// Package form models the control tree of a server-rendered form: panels that
// can be shown or hidden and drop-downs whose options can be rebound.
package form

import (
	"strings"
	"sync"

	"listbind/internal/domain"
)

// Kind tags a node of the control tree.
type Kind string

const (
	KindContainer Kind = "container"
	KindPanel     Kind = "panel"
	KindDropDown  Kind = "dropdown"
	KindLabel     Kind = "label"
)

// IDSeparator joins control ids into a client id.
const IDSeparator = "_"

// Node is a control in the tree.
type Node interface {
	// ClientID is the fully-qualified id, ancestors joined by IDSeparator.
	ClientID() string
	Kind() Kind
	Children() []Node
}

// Panel is a node whose visibility can be toggled.
type Panel interface {
	Node
	SetVisible(visible bool)
}

// OptionList is a node holding a selectable option set.
type OptionList interface {
	Node
	// ReplaceOptions clears the current options and bindings, then binds opts.
	ReplaceOptions(opts []domain.Option)
}

// Control is the in-memory Node implementation used by hosted forms.
// All controls of one tree share a lock owned by the root.
type Control struct {
	ID string
	// List optionally names the list backing a drop-down; when empty the
	// list is resolved from the control token.
	List string

	kind     Kind
	parent   *Control
	children []*Control
	mu       *sync.RWMutex

	visible        bool
	options        []domain.Option
	selected       string
	dataValueField string
	dataTextField  string
	bindCount      int
}

// NewControl creates a detached control.
func NewControl(id string, kind Kind) *Control {
	return &Control{ID: id, kind: kind, visible: true, mu: &sync.RWMutex{}}
}

// Add attaches children and returns c for chaining.
func (c *Control) Add(children ...*Control) *Control {
	for _, ch := range children {
		ch.parent = c
		ch.share(c.mu)
		c.children = append(c.children, ch)
	}
	return c
}

func (c *Control) share(mu *sync.RWMutex) {
	c.mu = mu
	for _, ch := range c.children {
		ch.share(mu)
	}
}

// ClientID implements Node.
func (c *Control) ClientID() string {
	var parts []string
	for n := c; n != nil; n = n.parent {
		parts = append(parts, n.ID)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, IDSeparator)
}

// Kind implements Node.
func (c *Control) Kind() Kind { return c.kind }

// Children implements Node.
func (c *Control) Children() []Node {
	nodes := make([]Node, len(c.children))
	for i, ch := range c.children {
		nodes[i] = ch
	}
	return nodes
}

// Parent returns the enclosing control, nil for the root.
func (c *Control) Parent() *Control { return c.parent }

// Root returns the top of c's tree.
func (c *Control) Root() *Control {
	n := c
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// SetVisible implements Panel.
func (c *Control) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = visible
}

// Visible reports the control's visibility flag.
func (c *Control) Visible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}

// ReplaceOptions implements OptionList.
func (c *Control) ReplaceOptions(opts []domain.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Clear, then rebind from scratch.
	c.options = nil
	c.dataValueField = ""
	c.dataTextField = ""

	c.dataValueField = domain.FieldCode
	c.dataTextField = domain.FieldName
	c.options = append([]domain.Option(nil), opts...)
	c.bindCount++

	// A selection that is no longer offered is dropped.
	if c.selected != "" && !hasCode(c.options, c.selected) {
		c.selected = ""
	}
}

// Options returns a copy of the bound options.
func (c *Control) Options() []domain.Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Option(nil), c.options...)
}

// Binding returns the data fields of the last bind.
func (c *Control) Binding() (valueField, textField string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataValueField, c.dataTextField
}

// Select records the selected value of a drop-down.
func (c *Control) Select(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = value
}

// Selected returns the selected value.
func (c *Control) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Find returns the first descendant (or c itself) whose id or client id equals id.
func (c *Control) Find(id string) *Control {
	if c.ID == id || c.ClientID() == id {
		return c
	}
	for _, ch := range c.children {
		if found := ch.Find(id); found != nil {
			return found
		}
	}
	return nil
}

func hasCode(opts []domain.Option, code string) bool {
	for _, o := range opts {
		if o.Code == code {
			return true
		}
	}
	return false
}

var (
	_ Panel      = (*Control)(nil)
	_ OptionList = (*Control)(nil)
)
