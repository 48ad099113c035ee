package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("list_imports",
		mcp.WithDescription("List the configured import jobs (source → list) and the available source types"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListImports)

	s.mcp.AddTool(mcp.NewTool("preview_import",
		mcp.WithDescription("Preview the records an import job would write, without persisting anything"),
		mcp.WithString("job", mcp.Description("Import job name"), mcp.Required()),
		mcp.WithNumber("rows", mcp.Description("Maximum rows to read (default 10)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handlePreviewImport)

	s.mcp.AddTool(mcp.NewTool("run_import",
		mcp.WithDescription("🛑 DESTRUCTIVE: Run an import job. May replace every item of the target list. Requires user approval."),
		mcp.WithString("job", mcp.Description("Import job name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunImport)

	s.mcp.AddTool(mcp.NewTool("import_status",
		mcp.WithDescription("Show whether import jobs are running and their most recent runs"),
		mcp.WithString("job", mcp.Description("Import job name (optional, defaults to every job)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleImportStatus)
}

func (s *Server) handleListImports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"jobs":    s.imports.Jobs(),
		"sources": s.imports.ListSources(),
	})
}

func (s *Server) handlePreviewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, err := requiredString(req, "job")
	if err != nil {
		return nil, err
	}
	preview, err := s.imports.Preview(ctx, job, req.GetInt("rows", 10))
	if err != nil {
		return nil, fmt.Errorf("preview import: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleRunImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(req, "job")
	if err != nil {
		return nil, err
	}
	job, err := s.imports.Job(name)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{"job": job.Name, "list": job.Target, "mode": string(job.SyncMode)})
	approved, err := s.approval.Request(ctx, "run_import",
		fmt.Sprintf("Run import job %s (%s into list %q)", job.Name, job.SyncMode, job.Target), string(meta))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	result, err := s.imports.RunJob(ctx, name)
	if err != nil {
		if result != nil {
			out, jerr := jsonResult(result)
			if jerr != nil {
				return nil, jerr
			}
			out.IsError = true
			return out, nil
		}
		return nil, fmt.Errorf("run import: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleImportStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("job", "")
	if name != "" {
		if _, err := s.imports.Job(name); err != nil {
			return nil, err
		}
	}

	type jobStatus struct {
		Name    string `json:"name"`
		Running bool   `json:"running"`
	}
	var status []jobStatus
	for _, j := range s.imports.Jobs() {
		if name == "" || j.Name == name {
			status = append(status, jobStatus{Name: j.Name, Running: s.imports.Running(j.Name)})
		}
	}

	runs, err := s.imports.ListRunLogs(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("run logs: %w", err)
	}
	return jsonResult(map[string]any{
		"jobs": status,
		"runs": runs,
	})
}
