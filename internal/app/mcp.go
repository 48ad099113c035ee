package app

import (
	"log"

	mcpserver "listbind/internal/mcp"
)

// Version is reported by the MCP server. Set by the command at startup.
var Version = "dev"

// NewMCPServer builds the MCP server over the app's services. Approvals go
// through the shared database so a `serve` process can decide them.
func (a *App) NewMCPServer() *mcpserver.Server {
	srv := mcpserver.New(mcpserver.Deps{
		Emitter:   a.hub,
		Lists:     a.listSvc,
		Forms:     a.formSvc,
		Imports:   a.importSvc,
		Approvals: a.approvals,
		Version:   Version,
	})
	srv.Approvals().SetTiming(a.cfg.MCP.ApprovalTimeout, 0)
	return srv
}

// ServeMCP runs the app as an MCP server on stdin/stdout. Logs go to stderr.
func (a *App) ServeMCP() error {
	log.Println("[MCP] Starting standalone stdio server...")
	return a.NewMCPServer().ServeStdio()
}
