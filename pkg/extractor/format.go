package extractor

import "regexp"

var (
	formatPunctRE      = regexp.MustCompile(`\s*([{}:;,])\s*`)
	formatDoubleSemiRE = regexp.MustCompile(`;\s*;`)
	formatDanglingRE   = regexp.MustCompile(`,[\s.#\d]*\{`)
	formatOpenRE       = regexp.MustCompile(`(\S)\{(\S)`)
	formatCloseRE      = regexp.MustCompile(`(\S)\}([^\n]*)`)
	formatDeclRE       = regexp.MustCompile(`(\S);([^\s}])`)
)

// FormatCSS pretty-prints extracted CSS for the dev runtime: one
// declaration per line, tab indented. It assumes the compact output of
// ExtractVariables and is not a general formatter.
func FormatCSS(css string) string {
	css = formatPunctRE.ReplaceAllString(css, "$1")
	css = formatDoubleSemiRE.ReplaceAllString(css, ";")
	css = formatDanglingRE.ReplaceAllString(css, "{")
	css = formatOpenRE.ReplaceAllString(css, "$1 {\n\t$2")
	css = formatCloseRE.ReplaceAllString(css, "$1\n}\n$2")
	css = formatDeclRE.ReplaceAllString(css, "$1;\n\t$2")
	return css
}
