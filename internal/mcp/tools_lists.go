package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"listbind/internal/directive"
	"listbind/internal/domain"
	"listbind/internal/form"
)

func (s *Server) registerListTools() {
	// ── list_lists ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_lists",
		mcp.WithDescription("List every list with its field schema"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListLists)

	// ── list_items ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("Get the items of a list by exact title, in Sort Order. Optionally keep only items whose field contains a text."),
		mcp.WithString("title", mcp.Description("Exact list title"), mcp.Required()),
		mcp.WithString("field", mcp.Description("Field to filter on (optional)")),
		mcp.WithString("contains", mcp.Description("Text the field must contain, case-insensitive (optional)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListItems)

	// ── resolve_list ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resolve_list",
		mcp.WithDescription("Resolve a loose list name (or a control client id) the way drop-downs are bound: whitespace and case are ignored and a trailing plural 's' on the title is tolerated."),
		mcp.WithString("name", mcp.Description("Loose list name, e.g. 'SubCode'")),
		mcp.WithString("control", mcp.Description("Control client id, e.g. 'Org_ucManualPayment_ddlSubCode'")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleResolveList)

	// ── classify_field ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("classify_field",
		mcp.WithDescription("Explain how a list field drives a form: which directive its name carries, which controls it targets and what its value means."),
		mcp.WithString("field", mcp.Description("Field name, e.g. 'AP Show Sub Codes'"), mcp.Required()),
		mcp.WithString("value", mcp.Description("Field value, e.g. 'true' or 'A,B'")),
		mcp.WithString("control", mcp.Description("Control client id to test against the directive (optional)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleClassifyField)
}

type listSummary struct {
	Title  string         `json:"title"`
	Source string         `json:"source,omitempty"`
	Fields []domain.Field `json:"fields"`
}

func (s *Server) handleListLists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lists, err := s.lists.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	out := make([]listSummary, len(lists))
	for i, l := range lists {
		out[i] = listSummary{Title: l.Title, Source: l.Source, Fields: l.Fields}
	}
	return jsonResult(out)
}

func (s *Server) handleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requiredString(req, "title")
	if err != nil {
		return nil, err
	}
	field := req.GetString("field", "")
	contains := req.GetString("contains", "")

	var items []domain.Item
	if field != "" {
		items, err = s.lists.ResolveItemsByField(ctx, title, field, contains)
	} else {
		items, err = s.lists.Items(ctx, title)
	}
	if err != nil {
		return nil, fmt.Errorf("items of %s: %w", title, err)
	}
	return jsonResult(itemRows(items))
}

func (s *Server) handleResolveList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	control := req.GetString("control", "")
	if name == "" && control != "" {
		name = form.ControlToken(control)
	}
	if name == "" {
		return nil, fmt.Errorf("name or control is required")
	}

	l, items, err := s.lists.ResolveList(ctx, name)
	if err != nil {
		// Lookup failures are an answer, not a tool failure.
		return textResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"token": directive.Normalize(name),
		"list":  listSummary{Title: l.Title, Source: l.Source, Fields: l.Fields},
		"items": itemRows(items),
	})
}

type fieldExplanation struct {
	Field              string   `json:"field"`
	Kind               string   `json:"kind"`
	VisibilityTarget   string   `json:"visibilityTarget,omitempty"`
	Visible            *bool    `json:"visible,omitempty"`
	VisibleParsed      *bool    `json:"visibleParsed,omitempty"`
	AvailabilityTarget string   `json:"availabilityTarget,omitempty"`
	RelatedList        string   `json:"relatedList,omitempty"`
	Codes              []string `json:"codes,omitempty"`
	AllCodes           *bool    `json:"allCodes,omitempty"`
	ControlToken       string   `json:"controlToken,omitempty"`
	TargetsPanel       *bool    `json:"targetsPanel,omitempty"`
	TargetsDropDown    *bool    `json:"targetsDropDown,omitempty"`
}

func (s *Server) handleClassifyField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := requiredString(req, "field")
	if err != nil {
		return nil, err
	}
	value := req.GetString("value", "")
	control := req.GetString("control", "")

	return jsonResult(explainField(field, value, control))
}

func explainField(field, value, control string) fieldExplanation {
	d := directive.Classify(field, value)
	out := fieldExplanation{Field: field, Kind: d.Kind.String()}

	if d.Kind.Has(directive.KindVisibility) {
		visible, parsed := directive.CoerceBool(value)
		out.VisibilityTarget = d.Target(directive.KindVisibility)
		out.Visible = boolPtr(visible)
		out.VisibleParsed = boolPtr(parsed)
	}
	if d.Kind.Has(directive.KindAvailability) {
		codes := directive.ParseCodes(value)
		out.AvailabilityTarget = d.Target(directive.KindAvailability)
		out.RelatedList = d.RelatedList()
		out.Codes = codes
		out.AllCodes = boolPtr(codes == nil)
	}
	if control != "" {
		token := form.ControlToken(control)
		out.ControlToken = token
		out.TargetsPanel = boolPtr(d.Matches(directive.KindVisibility, token))
		out.TargetsDropDown = boolPtr(d.Matches(directive.KindAvailability, token))
	}
	return out
}

// itemRows flattens items to their data maps for compact output.
func itemRows(items []domain.Item) []map[string]any {
	rows := make([]map[string]any, len(items))
	for i, it := range items {
		rows[i] = it.Data
	}
	return rows
}
