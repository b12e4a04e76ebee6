package extractor

import "strings"

// RuleBlock is one top-level rule: the selector text preceding '{' and the
// exact text between the outer braces. Nested rules (inside @media or
// @keyframes) are left in Body for the caller to recurse into.
type RuleBlock struct {
	Selector string
	Body     string
	IsAtRule bool
}

// Text returns the block as it appeared in the source.
func (b RuleBlock) Text() string {
	return b.Selector + "{" + b.Body + "}"
}

// StripComments removes /* block */ and // line comments. Quoted strings and
// parenthesised values are copied verbatim, so url(http://x) survives.
// An unterminated block comment swallows the rest of the input.
func StripComments(source string) string {
	var b strings.Builder
	b.Grow(len(source))

	depth := 0
	for i := 0; i < len(source); {
		c := source[i]
		switch {
		case c == '"' || c == '\'':
			end := skipString(source, i)
			b.WriteString(source[i:end])
			i = end
			continue
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			end := strings.Index(source[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 4
			continue
		case c == '/' && i+1 < len(source) && source[i+1] == '/' && depth == 0:
			end := strings.IndexByte(source[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end
			continue
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// Segment splits comment-free source into its top-level rule blocks in
// source order. Statements such as @import ending in ';' are not blocks.
// A trailing block with no closing brace is dropped.
func Segment(source string) []RuleBlock {
	var blocks []RuleBlock

	start := 0
	for i := 0; i < len(source); {
		switch source[i] {
		case '"', '\'':
			i = skipString(source, i)
			continue
		case ';', '}':
			start = i + 1
		case '{':
			end := matchBrace(source, i)
			if end < 0 {
				return blocks
			}
			selector := source[start:i]
			blocks = append(blocks, RuleBlock{
				Selector: selector,
				Body:     source[i+1 : end],
				IsAtRule: strings.HasPrefix(strings.TrimSpace(selector), "@"),
			})
			i = end + 1
			start = i
			continue
		}
		i++
	}
	return blocks
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
func matchBrace(source string, open int) int {
	depth := 0
	for i := open; i < len(source); {
		switch source[i] {
		case '"', '\'':
			i = skipString(source, i)
			continue
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// skipString returns the index just past the quoted string starting at i.
// Unterminated strings end at the next newline, as in CSS.
func skipString(source string, i int) int {
	quote := source[i]
	for j := i + 1; j < len(source); j++ {
		switch source[j] {
		case '\\':
			j++
		case '\n':
			return j
		case quote:
			return j + 1
		}
	}
	return len(source)
}
