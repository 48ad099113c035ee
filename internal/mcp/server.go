package mcpserver

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"listbind/internal/domain"
	"listbind/internal/service"
)

// Server is the MCP server for listbind.
// It exposes tools, resources, and prompts so AI agents can inspect lists,
// drive form sessions and run imports.
type Server struct {
	mcp      *server.MCPServer
	approval *ApprovalQueue

	lists   *service.ListService
	forms   *service.FormService
	imports *service.ImportService
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Emitter   service.EventEmitter
	Lists     *service.ListService
	Forms     *service.FormService
	Imports   *service.ImportService // nil disables the import tools
	Approvals domain.ApprovalStore   // shared with the serve process
	Version   string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		approval: NewApprovalQueue(deps.Approvals, deps.Emitter),
		lists:    deps.Lists,
		forms:    deps.Forms,
		imports:  deps.Imports,
	}

	s.mcp = server.NewMCPServer(
		"listbind-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerListTools()
	s.registerFormTools()
	if s.imports != nil {
		s.registerImportTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Approvals returns the approval queue used by destructive tools.
func (s *Server) Approvals() *ApprovalQueue {
	return s.approval
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}
