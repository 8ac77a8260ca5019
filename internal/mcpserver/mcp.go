// Package mcpserver builds the MCP server mounted at /mcp.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/affanhamid/editor/taskhub/internal/tools"
)

func New(cfg *tools.Config) *server.MCPServer {
	s := server.NewMCPServer(
		"taskhub",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	tools.RegisterAll(s, cfg)
	return s
}
