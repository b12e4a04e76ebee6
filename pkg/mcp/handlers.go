package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gnana997/dyntheme/pkg/extractor"
	"github.com/gnana997/dyntheme/pkg/less"
	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/mark3labs/mcp-go/mcp"
)

// extractResponse is the payload of extract_theme_css and dark_theme_css.
type extractResponse struct {
	CSS    string   `json:"css"`
	Tokens []string `json:"tokens"`
	Empty  bool     `json:"empty"`
}

type scanResponse struct {
	Colors []string `json:"colors"`
	Count  int      `json:"count"`
}

func (s *Server) handleExtractThemeCSS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	css, err := req.RequireString("css")
	if err != nil {
		return mcp.NewToolResultError("css parameter is required"), nil
	}
	tokens := req.GetStringSlice("tokens", nil)
	if len(tokens) == 0 {
		return mcp.NewToolResultError("tokens must list at least one color"), nil
	}

	var opts []extractor.Option
	if wrapper := req.GetString("wrapper", ""); wrapper != "" {
		opts = append(opts, extractor.WithSelectorResolver(extractor.WrapperResolver(wrapper)))
	}
	ex := extractor.New(tokens, opts...)

	out := ex.ExtractVariables(css)
	if req.GetBool("pretty", false) {
		out = extractor.FormatCSS(out)
	}
	return jsonResult(extractResponse{CSS: out, Tokens: ex.Tokens(), Empty: out == ""})
}

func (s *Server) handleScanColors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	css, err := req.RequireString("css")
	if err != nil {
		return mcp.NewToolResultError("css parameter is required"), nil
	}
	colors := extractor.ScanColors(css)
	if colors == nil {
		colors = []string{}
	}
	return jsonResult(scanResponse{Colors: colors, Count: len(colors)})
}

func (s *Server) handleFormatCSS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	css, err := req.RequireString("css")
	if err != nil {
		return mcp.NewToolResultError("css parameter is required"), nil
	}
	return mcp.NewToolResultText(extractor.FormatCSS(css)), nil
}

func (s *Server) handleDarkThemeCSS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("less")
	if err != nil {
		return mcp.NewToolResultError("less parameter is required"), nil
	}
	selector := req.GetString("selector", plugin.DefaultDarkSelector)

	compiled, err := s.compiler.Compile(ctx, less.Request{
		Source:            source,
		Filename:          "input.less",
		ModifyVars:        modifyVars(req.GetArguments()["modify_vars"]),
		JavascriptEnabled: true,
	})
	if err != nil {
		s.logger.Debug("dark_theme_css compile failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compile less: %v", err)), nil
	}

	colors := extractor.ScanColors(compiled)
	var out string
	if len(colors) > 0 {
		out = extractor.Extract(compiled, colors, nil)
	}
	sort.Strings(colors)
	return jsonResult(extractResponse{
		CSS:    "[" + selector + "] {" + out + "}",
		Tokens: append(colors, extractor.Transparent),
		Empty:  out == "",
	})
}

// modifyVars converts the modify_vars argument to Less variable overrides.
// Non-string values are rendered with fmt.
func modifyVars(arg any) map[string]string {
	obj, ok := arg.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	vars := make(map[string]string, len(obj))
	for k, v := range obj {
		if str, ok := v.(string); ok {
			vars[k] = str
			continue
		}
		vars[k] = fmt.Sprint(v)
	}
	return vars
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
