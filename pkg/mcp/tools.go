package mcp

import "github.com/mark3labs/mcp-go/mcp"

func extractThemeCSSTool() mcp.Tool {
	return mcp.NewTool("extract_theme_css",
		mcp.WithDescription("Extract the rules of a stylesheet whose declarations use one of the given color tokens"),
		mcp.WithString("css",
			mcp.Required(),
			mcp.Description("Stylesheet source"),
		),
		mcp.WithArray("tokens",
			mcp.Required(),
			mcp.Description("Color tokens, e.g. #1890ff or rgb(24, 144, 255)"),
			mcp.WithStringItems(),
		),
		mcp.WithString("wrapper",
			mcp.Description("Selector prefixed to every extracted selector"),
		),
		mcp.WithBoolean("pretty",
			mcp.Description("Pretty-print the result"),
		),
	)
}

func scanColorsTool() mcp.Tool {
	return mcp.NewTool("scan_colors",
		mcp.WithDescription("List the distinct color literals of a stylesheet in first-seen order"),
		mcp.WithString("css",
			mcp.Required(),
			mcp.Description("Stylesheet source"),
		),
	)
}

func formatCSSTool() mcp.Tool {
	return mcp.NewTool("format_css",
		mcp.WithDescription("Pretty-print extracted CSS the way dev modules embed it"),
		mcp.WithString("css",
			mcp.Required(),
			mcp.Description("Stylesheet source"),
		),
	)
}

func darkThemeCSSTool() mcp.Tool {
	return mcp.NewTool("dark_theme_css",
		mcp.WithDescription("Compile Less with dark variable overrides and return the color rules scoped under a theme selector"),
		mcp.WithString("less",
			mcp.Required(),
			mcp.Description("Less source"),
		),
		mcp.WithObject("modify_vars",
			mcp.Description("Less variable overrides, name to value"),
		),
		mcp.WithString("selector",
			mcp.Description(`Attribute selector for the dark scope (default data-theme="dark")`),
		),
	)
}
