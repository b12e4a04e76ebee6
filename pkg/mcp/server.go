// Package mcp exposes theme extraction as MCP tools over stdio, so an agent
// can pull the color rules out of a stylesheet without running a build.
package mcp

import (
	"log/slog"

	"github.com/gnana997/dyntheme/pkg/less"
	"github.com/gnana997/dyntheme/pkg/mcplog"
	"github.com/gnana997/dyntheme/pkg/util"
	"github.com/mark3labs/mcp-go/server"
)

const serverVersion = "0.1.0"

// Server is the dyntheme MCP server.
type Server struct {
	mcpServer *server.MCPServer
	compiler  less.Compiler // may be nil when no JS runtime is available
	callLog   *mcplog.Logger
	logger    *slog.Logger
}

// NewServer creates a server. compiler enables the dark_theme_css tool and
// callLog, when non-nil, receives one entry per tool call.
func NewServer(compiler less.Compiler, callLog *mcplog.Logger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	s := &Server{compiler: compiler, callLog: callLog, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("dyntheme", serverVersion, opts...)
	s.mcpServer.AddTools(s.tools()...)

	return s
}

func (s *Server) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: extractThemeCSSTool(), Handler: s.handleExtractThemeCSS},
		{Tool: scanColorsTool(), Handler: s.handleScanColors},
		{Tool: formatCSSTool(), Handler: s.handleFormatCSS},
	}
	if s.compiler != nil {
		tools = append(tools, server.ServerTool{Tool: darkThemeCSSTool(), Handler: s.handleDarkThemeCSS})
	}
	return tools
}

// ServeStdio serves MCP on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio", "tools", len(s.tools()))
	return server.ServeStdio(s.mcpServer)
}
