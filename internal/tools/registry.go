// Package tools exposes the dependency graph as MCP tools.
package tools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/affanhamid/editor/taskhub/internal/depgraph"
)

// Config is shared by every tool handler. UserID is the actor the tools act
// as; access checks go through Tasks exactly like HTTP requests.
type Config struct {
	UserID depgraph.UserID
	Graph  *depgraph.Service
	Tasks  depgraph.Directory
}

func RegisterAll(s *server.MCPServer, cfg *Config) {
	registerDependencyTools(s, cfg)
}
