package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("diagnose_binding",
		mcp.WithPromptDescription("Work out why a panel or drop-down of a form does not react to a selection"),
		mcp.WithArgument("formId",
			mcp.ArgumentDescription("Form definition id"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("control",
			mcp.ArgumentDescription("Client id of the control that misbehaves"),
			mcp.RequiredArgument(),
		),
	), s.handleDiagnoseBindingPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("design_list",
		mcp.WithPromptDescription("Design the fields of a list so that selecting its records drives a form"),
		mcp.WithArgument("formId",
			mcp.ArgumentDescription("Form definition id"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("dropDown",
			mcp.ArgumentDescription("Client id of the drop-down whose list is being designed"),
			mcp.RequiredArgument(),
		),
	), s.handleDesignListPrompt)
}

func (s *Server) handleDiagnoseBindingPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	formID := req.Params.Arguments["formId"]
	control := req.Params.Arguments["control"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Diagnose the binding of %s on %s", control, formID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`The control "%s" on form "%s" does not react to selections as expected. Follow these steps:

1. Use classify_field with control="%s" on every field of the lists involved (list_lists shows them) to find the fields whose directive targets it.
2. Use resolve_list with control="%s" to check that a drop-down resolves to exactly one list. An ambiguous or missing list leaves the drop-down untouched.
3. Use open_form, then select_value on the triggering drop-down, and read the panels and options reported as changed or skipped.
4. Check that every "Show" field is declared boolean; one mismatched field aborts the whole synchronization.

Summarize the root cause and the smallest change to a list (field name, type or value) that fixes it. Close the session with close_form when done.`, control, formID, control, control),
				},
			},
		},
	}, nil
}

func (s *Server) handleDesignListPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	formID := req.Params.Arguments["formId"]
	dropDown := req.Params.Arguments["dropDown"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Design the list behind %s", dropDown),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Design the list feeding drop-down "%s" on form "%s". Follow these steps:

1. Use open_form and read the control tree to find the panels and drop-downs below "%s".
2. Name the list so resolve_list finds it from the drop-down's client id (the id after its three-letter prefix, spaces and case ignored, an optional trailing "s").
3. Give it Code, Name and Sort Order fields.
4. For each panel to toggle, add a boolean field "Show <panel name>".
5. For each dependent drop-down, add a text field "Available <related list title>" holding comma-separated codes, or ALL.

Check every proposed field name with classify_field before answering, and present the result as a table of fields with their types.`, dropDown, formID, dropDown),
				},
			},
		},
	}, nil
}
