package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerFormTools() {
	// ── list_forms ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List the registered form definitions and the open sessions"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListForms)

	// ── open_form ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_form",
		mcp.WithDescription("Open a form definition as a new session and return its control tree"),
		mcp.WithString("formId", mcp.Description("Form definition id"), mcp.Required()),
	), s.handleOpenForm)

	// ── select_value ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_value",
		mcp.WithDescription("Select a code in a drop-down of an open session. Returns the panels and drop-downs the selected record changed, plus the new control tree."),
		mcp.WithString("sessionId", mcp.Description("Session id from open_form"), mcp.Required()),
		mcp.WithString("control", mcp.Description("Drop-down control id"), mcp.Required()),
		mcp.WithString("value", mcp.Description("Code to select")),
	), s.handleSelectValue)

	// ── form_state ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("form_state",
		mcp.WithDescription("Get the control tree of an open session"),
		mcp.WithString("sessionId", mcp.Description("Session id"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleFormState)

	// ── close_form ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("close_form",
		mcp.WithDescription("Close an open session"),
		mcp.WithString("sessionId", mcp.Description("Session id"), mcp.Required()),
	), s.handleCloseForm)
}

func (s *Server) handleListForms(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type sessionSummary struct {
		ID     string `json:"id"`
		FormID string `json:"formId"`
	}
	sessions := s.forms.Sessions()
	open := make([]sessionSummary, len(sessions))
	for i, sess := range sessions {
		open[i] = sessionSummary{ID: sess.ID, FormID: sess.FormID}
	}
	return jsonResult(map[string]any{
		"forms":    s.forms.Forms(),
		"sessions": open,
	})
}

func (s *Server) handleOpenForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	formID, err := requiredString(req, "formId")
	if err != nil {
		return nil, err
	}
	sess, err := s.forms.Open(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("open form: %w", err)
	}
	return jsonResult(sess.State())
}

func (s *Server) handleSelectValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requiredString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	control, err := requiredString(req, "control")
	if err != nil {
		return nil, err
	}
	res, err := s.forms.Select(ctx, sessionID, control, req.GetString("value", ""))
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return jsonResult(res)
}

func (s *Server) handleFormState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requiredString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	sess, err := s.forms.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.State())
}

func (s *Server) handleCloseForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requiredString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	if err := s.forms.Close(ctx, sessionID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Session %s closed", sessionID)), nil
}
