package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"listbind/internal/directive"
	"listbind/internal/domain"
	"listbind/internal/form"
	"listbind/internal/metrics"
)

// ─────────────────────────────────────────────────────────────
// Synchronizer — applies an item's directives to a control tree
// ─────────────────────────────────────────────────────────────

// Events emitted while applying directives.
const (
	EventVisibility = "form:visibility"
	EventOptions    = "form:options"
)

// PanelChange is one visibility directive applied to a panel.
type PanelChange struct {
	Control string `json:"control"`
	Field   string `json:"field"`
	Visible bool   `json:"visible"`
	// Defaulted is set when the value was not boolean-parseable.
	Defaulted bool `json:"defaulted,omitempty"`
}

// OptionsChange is one availability directive applied to a drop-down.
type OptionsChange struct {
	Control string          `json:"control"`
	Field   string          `json:"field"`
	List    string          `json:"list"`
	Options []domain.Option `json:"options"`
}

// Skip is an availability directive that could not be applied.
type Skip struct {
	Control string `json:"control"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

// Result reports what one synchronization changed.
type Result struct {
	Item             string          `json:"item"`
	PanelsToggled    []PanelChange   `json:"panelsToggled"`
	OptionListsBound []OptionsChange `json:"optionListsBound"`
	Skipped          []Skip          `json:"skipped,omitempty"`
}

// Synchronizer applies the directives carried by an item's field names to
// the panels and drop-downs below a root control.
type Synchronizer struct {
	lists   *ListService
	emitter EventEmitter
	metrics *metrics.Metrics
}

// NewSynchronizer creates a Synchronizer. emitter and m may be nil.
func NewSynchronizer(lists *ListService, emitter EventEmitter, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{lists: lists, emitter: emitter, metrics: m}
}

type panelAction struct {
	panel  form.Panel
	change PanelChange
}

type optionsAction struct {
	list   form.OptionList
	change OptionsChange
}

// Synchronize classifies every field of item in schema order and applies the
// resulting directives below root.
//
// A visibility field matching a panel must be declared boolean; otherwise the
// call fails with a *domain.FieldTypeError and the tree is left untouched.
// Values that are not boolean-parseable show the panel. An availability field
// whose related list cannot be resolved is skipped.
func (s *Synchronizer) Synchronize(ctx context.Context, item *domain.Item, root form.Node) (*Result, error) {
	res, err := s.synchronize(ctx, item, root)
	s.metrics.Synchronized(err)
	return res, err
}

func (s *Synchronizer) synchronize(ctx context.Context, item *domain.Item, root form.Node) (*Result, error) {
	if item == nil || root == nil {
		return nil, fmt.Errorf("synchronize: item and root are required")
	}

	panels := form.Panels(root)
	optionLists := form.OptionLists(root)
	resolved := make(map[string]resolution)

	res := &Result{Item: item.ID}
	var (
		panelActions   []panelAction
		optionsActions []optionsAction
	)

	for _, name := range item.FieldNames() {
		d := directive.Classify(name, item.Raw(name))

		if d.Kind.Has(directive.KindVisibility) {
			for _, p := range panels {
				if !d.Matches(directive.KindVisibility, form.ControlToken(p.ClientID())) {
					continue
				}
				if t := item.FieldType(name); t != domain.FieldTypeBoolean {
					return nil, &domain.FieldTypeError{ItemID: item.ID, Field: name, Type: t}
				}
				visible, ok := directive.CoerceBool(d.Value)
				if !ok {
					log.Printf("[SYNC] item %s: %q value %v is not boolean, showing %s", item.ID, name, d.Value, p.ClientID())
				}
				panelActions = append(panelActions, panelAction{
					panel:  p,
					change: PanelChange{Control: p.ClientID(), Field: name, Visible: visible, Defaulted: !ok},
				})
			}
		}

		if d.Kind.Has(directive.KindAvailability) {
			for _, ol := range optionLists {
				if !d.Matches(directive.KindAvailability, form.ControlToken(ol.ClientID())) {
					continue
				}
				related := d.RelatedList()
				r, ok := resolved[related]
				if !ok {
					r = s.resolve(ctx, related)
					resolved[related] = r
				}
				if r.err != nil {
					if !isLookupFailure(r.err) {
						return nil, r.err
					}
					log.Printf("[SYNC] item %s: skipping %s, list %q: %v", item.ID, ol.ClientID(), related, r.err)
					s.metrics.LookupSkipped()
					res.Skipped = append(res.Skipped, Skip{Control: ol.ClientID(), Field: name, Reason: r.err.Error()})
					continue
				}
				optionsActions = append(optionsActions, optionsAction{
					list: ol,
					change: OptionsChange{
						Control: ol.ClientID(),
						Field:   name,
						List:    r.list.Title,
						Options: BuildOptions(r.items, directive.ParseCodes(item.Value(name))),
					},
				})
			}
		}
	}

	for _, a := range panelActions {
		a.panel.SetVisible(a.change.Visible)
		res.PanelsToggled = append(res.PanelsToggled, a.change)
		s.metrics.DirectiveApplied(directive.KindVisibility.String())
		s.emit(ctx, EventVisibility, a.change)
	}
	for _, a := range optionsActions {
		a.list.ReplaceOptions(a.change.Options)
		res.OptionListsBound = append(res.OptionListsBound, a.change)
		s.metrics.DirectiveApplied(directive.KindAvailability.String())
		s.emit(ctx, EventOptions, a.change)
	}
	return res, nil
}

type resolution struct {
	list  *domain.List
	items []domain.Item
	err   error
}

func (s *Synchronizer) resolve(ctx context.Context, name string) resolution {
	l, items, err := s.lists.ResolveList(ctx, name)
	return resolution{list: l, items: items, err: err}
}

func (s *Synchronizer) emit(ctx context.Context, event string, data any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event, data)
	}
}

// isLookupFailure reports whether err is a recoverable list-name resolution failure.
func isLookupFailure(err error) bool {
	return errors.Is(err, domain.ErrListNotFound) || errors.Is(err, domain.ErrListAmbiguous)
}

// ── Option building ────────────────────────────────────────

// BuildOptions computes the option set of a drop-down fed by items.
//
// A nil code set admits every item in item order. Otherwise codes are scanned
// in order and each contributes one option per item carrying that code, so
// repeated codes and repeated items both yield repeated options. A blank
// option always comes first. The rest is ordered by Sort Order when every
// option has one, else left in scan order.
func BuildOptions(items []domain.Item, codes []string) []domain.Option {
	opts := []domain.Option{domain.BlankOption()}
	if codes == nil {
		for i := range items {
			opts = append(opts, domain.OptionFromItem(&items[i]))
		}
	} else {
		for _, code := range codes {
			if code == "" {
				continue
			}
			for i := range items {
				if items[i].Code() == code {
					opts = append(opts, domain.OptionWithCode(&items[i], code))
				}
			}
		}
	}

	rest := opts[1:]
	for _, o := range rest {
		if o.SortOrder == nil {
			return opts
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return *rest[i].SortOrder < *rest[j].SortOrder })
	return opts
}
