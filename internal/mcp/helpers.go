package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// requiredString reads a non-empty string argument.
func requiredString(req mcp.CallToolRequest, name string) (string, error) {
	v := req.GetString(name, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func boolPtr(b bool) *bool { return &b }
