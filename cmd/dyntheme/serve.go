package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/less"
	mcpserver "github.com/gnana997/dyntheme/pkg/mcp"
	"github.com/gnana997/dyntheme/pkg/mcplog"
)

func newServeCmd(a *app) *cobra.Command {
	var callLogPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `serve exposes the extraction engine as MCP tools (extract_theme_css,
scan_colors, format_css and, when node or bun is available, dark_theme_css).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			callLog, err := mcplog.Open(callLogPath)
			if err != nil {
				return err
			}
			defer callLog.Close()

			var compiler less.Compiler
			nc, err := less.NewNodeCompiler(a.env.Node, a.rootOrCwd(), a.logger)
			switch {
			case err == nil:
				defer nc.Close()
				compiler = nc
			case errors.Is(err, less.ErrNoRuntime):
				a.logger.Warn("no JS runtime found, dark_theme_css disabled")
			default:
				return err
			}

			return mcpserver.NewServer(compiler, callLog, a.logger).ServeStdio()
		},
	}
	cmd.Flags().StringVar(&callLogPath, "call-log", "", "Append one JSON line per tool call to this file")
	return cmd
}

func (a *app) rootOrCwd() string {
	if a.root != "" {
		return a.root
	}
	return "."
}
