// Package mcp exposes the packaged assets and the module resolver over the
// Model Context Protocol, so an agent can see exactly what require() would load.
package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/lua"
)

// Logger is the verbosity-gated logging sink. *config.Config implements it.
type Logger interface {
	Log(level int, format string, args ...interface{})
}

// Server wraps an MCP server bound to one asset store and runtime.
type Server struct {
	mcp     *server.MCPServer
	store   assets.Store
	runtime *lua.Runtime
	logger  Logger
}

// NewServer creates an MCP server with the standard tools and the asset
// resource template registered. The runtime serves search_module and
// require_module.
func NewServer(name, version string, store assets.Store, rt *lua.Runtime, logger Logger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
		store:   store,
		runtime: rt,
		logger:  logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) log(level int, format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Log(level, format, args...)
	}
}

// Serve processes MCP messages from input, writing responses to output, until
// input ends or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, input io.Reader, output io.Writer) error {
	s.log(1, "mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, input, output)
}
