package extractor

import "regexp"

// colorLiteralRE matches hex colors and rgb()/rgba()/hsl()/hsla() calls.
var colorLiteralRE = regexp.MustCompile(`#(?:[0-9a-fA-F]{8}|[0-9a-fA-F]{6}|[0-9a-fA-F]{3,4})\b|(?:rgb|hsl)a?\([^()]*\)`)

// ScanColors returns the distinct color literals of compiled CSS in
// first-seen order. Compiled Less has every variable resolved, so these
// literals are the token set for extracting its theme rules.
func ScanColors(css string) []string {
	matches := colorLiteralRE.FindAllString(StripComments(css), -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	colors := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		colors = append(colors, m)
	}
	return colors
}
