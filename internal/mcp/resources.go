package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	listsURI        = "listbind://lists"
	listItemsPrefix = "listbind://lists/"
	listItemsSuffix = "/items"
	formsURI        = "listbind://forms"
	jsonMIMEType    = "application/json"
)

func (s *Server) registerResources() {
	// ── listbind://lists ───────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		listsURI,
		"All Lists",
		mcp.WithMIMEType(jsonMIMEType),
	), s.handleListsResource)

	// ── listbind://forms ───────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		formsURI,
		"Form Definitions",
		mcp.WithMIMEType(jsonMIMEType),
	), s.handleFormsResource)

	// ── listbind://lists/{title}/items ─────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			listItemsPrefix+"{title}"+listItemsSuffix,
			"Items of a List",
			mcp.WithTemplateMIMEType(jsonMIMEType),
		),
		s.handleListItemsResource,
	)
}

func (s *Server) handleListsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	lists, err := s.lists.ListLists(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]listSummary, len(lists))
	for i, l := range lists {
		out[i] = listSummary{Title: l.Title, Source: l.Source, Fields: l.Fields}
	}
	return jsonContents(listsURI, out)
}

func (s *Server) handleFormsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(formsURI, s.forms.Forms())
}

func (s *Server) handleListItemsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	title, err := titleFromURI(uri)
	if err != nil {
		return nil, err
	}
	items, err := s.lists.Items(ctx, title)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, itemRows(items))
}

// titleFromURI extracts the list title from "listbind://lists/{title}/items".
// Titles contain spaces, so the segment may be percent-encoded.
func titleFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, listItemsPrefix) || !strings.HasSuffix(uri, listItemsSuffix) {
		return "", fmt.Errorf("could not extract list title from URI: %s", uri)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(uri, listItemsPrefix), listItemsSuffix)
	title, err := url.PathUnescape(raw)
	if err != nil || title == "" {
		return "", fmt.Errorf("could not extract list title from URI: %s", uri)
	}
	return title, nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(data),
		},
	}, nil
}
