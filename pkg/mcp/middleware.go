package mcp

import (
	"context"
	"time"

	"github.com/gnana997/dyntheme/pkg/mcplog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// loggingMiddleware writes one call log entry per tool call. Log write
// failures are reported at debug level and never change the result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.Entry{
				Ts:            start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				Params:        mcplog.SanitizeParams(req.GetArguments()),
				DurationMs:    time.Since(start).Milliseconds(),
				ResponseBytes: mcplog.ResponseBytes(result),
				ToolError:     result != nil && result.IsError,
			}
			if err != nil {
				msg := err.Error()
				entry.Error = &msg
			}
			if werr := s.callLog.Write(entry); werr != nil {
				s.logger.Debug("call log write failed", "tool", entry.Tool, "error", werr)
			}

			return result, err
		}
	}
}
