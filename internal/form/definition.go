package form

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ControlDef declares one control of a form definition.
type ControlDef struct {
	ID       string       `yaml:"id" json:"id"`
	Kind     Kind         `yaml:"kind" json:"kind"`
	List     string       `yaml:"list,omitempty" json:"list,omitempty"`
	Hidden   bool         `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Controls []ControlDef `yaml:"controls,omitempty" json:"controls,omitempty"`
}

// Definition is a form loaded from YAML:
//
//	id: ucManualPayment
//	root: Org
//	controls:
//	  - id: ddlGLAccount
//	    kind: dropdown
//	  - id: pnlSubCodes
//	    kind: panel
//	    controls:
//	      - id: ddlSubCode
//	        kind: dropdown
type Definition struct {
	ID       string       `yaml:"id" json:"id"`
	Title    string       `yaml:"title,omitempty" json:"title,omitempty"`
	Root     string       `yaml:"root,omitempty" json:"root,omitempty"`
	Controls []ControlDef `yaml:"controls" json:"controls"`
}

// ParseDefinition decodes and validates a YAML form definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse form definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a YAML form definition from disk.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form definition: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks ids, kinds and sibling uniqueness.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("form id is required")
	}
	if strings.Contains(d.ID, IDSeparator) {
		return fmt.Errorf("form id %q must not contain %q", d.ID, IDSeparator)
	}
	return validateControls(d.ID, d.Controls)
}

func validateControls(parent string, defs []ControlDef) error {
	seen := make(map[string]bool, len(defs))
	for _, c := range defs {
		if c.ID == "" {
			return fmt.Errorf("%s: control id is required", parent)
		}
		if strings.Contains(c.ID, IDSeparator) {
			return fmt.Errorf("%s: control id %q must not contain %q", parent, c.ID, IDSeparator)
		}
		if seen[c.ID] {
			return fmt.Errorf("%s: duplicate control id %q", parent, c.ID)
		}
		seen[c.ID] = true
		switch c.Kind {
		case KindContainer, KindPanel, KindDropDown, KindLabel:
		case "":
			return fmt.Errorf("%s: control %q has no kind", parent, c.ID)
		default:
			return fmt.Errorf("%s: control %q has unknown kind %q", parent, c.ID, c.Kind)
		}
		if err := validateControls(parent+IDSeparator+c.ID, c.Controls); err != nil {
			return err
		}
	}
	return nil
}

// Instantiate builds a fresh control tree. The form itself is a container
// under an optional root naming container.
func (d *Definition) Instantiate() *Control {
	form := NewControl(d.ID, KindContainer)
	for _, c := range d.Controls {
		form.Add(build(c))
	}
	if d.Root == "" {
		return form
	}
	return NewControl(d.Root, KindContainer).Add(form)
}

func build(def ControlDef) *Control {
	c := NewControl(def.ID, def.Kind)
	c.List = def.List
	c.visible = !def.Hidden
	for _, child := range def.Controls {
		c.Add(build(child))
	}
	return c
}
