// Package extractor pulls color-bearing rules out of CSS and Less source.
//
// It is a text-level scanner, not a CSS parser: comments are stripped, the
// source is cut into top-level rule blocks, blocks that mention none of the
// caller's color tokens are dropped, and from the rest only the declarations
// whose value references a token are kept. The result is a minimal
// stylesheet that can be swapped at runtime to change a theme.
//
//	e := extractor.New([]string{"var(--primary)", "#1890ff"},
//	    extractor.WithSelectorResolver(extractor.WrapperResolver("[data-theme]")))
//	css := e.ExtractVariables(source)
//
// Malformed input never fails; it yields a partial or empty result.
package extractor

import (
	"regexp"
	"strings"
)

// Transparent is always treated as a color token so that
// "background: transparent" overrides survive extraction.
const Transparent = "transparent"

// Structural parts of the declaration matcher: the property name (custom
// properties and vendor prefixes included), value words preceding the color,
// and a trailing !important.
const (
	propertyExpr  = `-{0,2}(?:\w+-)*\w+:`
	valueExpr     = `(?:\s?[\w.%-]+\s)*`
	safeEmptyExpr = `\s?`
	importantExpr = `(?:\s*!important)?`
)

var (
	keyframesRE = regexp.MustCompile(`(?i)^@[\w-]*keyframes\b`)
	groupingRE  = regexp.MustCompile(`(?i)^@(?:media|supports|container|layer|document|-moz-document)\b`)
)

// SelectorResolver rewrites a rule's selector before it is emitted.
type SelectorResolver interface {
	ResolveSelector(selector string) string
}

// ResolverFunc adapts a plain function to SelectorResolver.
type ResolverFunc func(selector string) string

// ResolveSelector calls f(selector).
func (f ResolverFunc) ResolveSelector(selector string) string {
	return f(selector)
}

// WrapperResolver returns a resolver that scopes every selector of a
// selector list under wrapper, e.g. ".a, .b" -> "[dark] .a, [dark] .b".
// An empty wrapper leaves selectors unchanged.
func WrapperResolver(wrapper string) SelectorResolver {
	wrapper = strings.TrimSpace(wrapper)
	return ResolverFunc(func(selector string) string {
		if wrapper == "" {
			return selector
		}
		parts := splitSelectorList(selector)
		for i, part := range parts {
			parts[i] = wrapper + " " + part
		}
		return strings.Join(parts, ", ")
	})
}

// VariableExtractor turns stylesheet source into theme CSS. An empty result
// means nothing in the source is theme relevant.
type VariableExtractor interface {
	ExtractVariables(source string) string
}

// ExtractFunc adapts a plain function to VariableExtractor.
type ExtractFunc func(source string) string

// ExtractVariables calls f(source).
func (f ExtractFunc) ExtractVariables(source string) string {
	return f(source)
}

// ExtractedRule is a selector with the declarations kept from its body,
// in source order.
type ExtractedRule struct {
	Selector     string
	Declarations []string
}

// String renders the rule as "selector {decl;decl}".
func (r ExtractedRule) String() string {
	return r.Selector + " {" + strings.Join(r.Declarations, ";") + "}"
}

// Extractor extracts color declarations for a fixed token set.
// It is safe for concurrent use.
type Extractor struct {
	tokens   []string
	pattern  *regexp.Regexp
	matcher  *regexp.Regexp
	bounded  bool
	resolver SelectorResolver
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSelectorResolver rewrites every emitted selector through r.
func WithSelectorResolver(r SelectorResolver) Option {
	return func(e *Extractor) {
		e.resolver = r
	}
}

// WithMatcher replaces the composed declaration matcher. Every match of re
// inside a rule body becomes one emitted declaration.
func WithMatcher(re *regexp.Regexp) Option {
	return func(e *Extractor) {
		e.matcher = re
	}
}

// New returns an Extractor for tokens plus Transparent.
func New(tokens []string, opts ...Option) *Extractor {
	all := make([]string, 0, len(tokens)+1)
	all = append(all, tokens...)
	all = append(all, Transparent)
	norm := normalizeTokens(all)

	e := &Extractor{
		tokens:  norm,
		pattern: BuildTokenPattern(norm),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.matcher == nil {
		e.matcher = declarationMatcher(norm)
		e.bounded = true
	}
	return e
}

// Extract is shorthand for New(tokens, WithSelectorResolver(resolver)).ExtractVariables(source).
// A nil resolver keeps selectors verbatim.
func Extract(source string, tokens []string, resolver SelectorResolver) string {
	return New(tokens, WithSelectorResolver(resolver)).ExtractVariables(source)
}

// Tokens returns the normalized token set, Transparent included.
func (e *Extractor) Tokens() []string {
	return append([]string(nil), e.tokens...)
}

// ExtractVariables returns the concatenation of every emitted rule, or ""
// when no block of source references a token.
func (e *Extractor) ExtractVariables(source string) string {
	return e.extract(StripComments(source), e.resolver)
}

func (e *Extractor) extract(source string, resolver SelectorResolver) string {
	var out strings.Builder

	for _, block := range Segment(source) {
		if !e.pattern.MatchString(block.Text()) {
			continue
		}

		selector := strings.TrimSpace(block.Selector)
		if selector == "" {
			continue
		}

		if block.IsAtRule {
			switch {
			case keyframesRE.MatchString(selector):
				// Keyframe selectors (from, to, 40%) are never rewritten.
				e.writeGroup(&out, selector, e.extract(block.Body, nil))
				continue
			case groupingRE.MatchString(selector):
				e.writeGroup(&out, selector, e.extract(block.Body, resolver))
				continue
			}
		}

		rule, ok := e.extractRule(selector, block.Body, resolver)
		if !ok {
			continue
		}
		out.WriteString(rule.String())
	}

	return out.String()
}

func (e *Extractor) writeGroup(out *strings.Builder, selector, inner string) {
	if inner == "" {
		return
	}
	out.WriteString(selector)
	out.WriteString(" {")
	out.WriteString(inner)
	out.WriteString("}")
}

func (e *Extractor) extractRule(selector, body string, resolver SelectorResolver) (ExtractedRule, bool) {
	decls := e.declarations(body)
	if len(decls) == 0 {
		return ExtractedRule{}, false
	}
	if resolver != nil {
		selector = resolver.ResolveSelector(selector)
	}
	return ExtractedRule{Selector: selector, Declarations: decls}, true
}

// declarations returns the matcher's hits in body. The composed matcher's
// hits must end at a value boundary, so "#fff" does not match "#fffa00".
func (e *Extractor) declarations(body string) []string {
	locs := e.matcher.FindAllStringIndex(body, -1)
	decls := make([]string, 0, len(locs))
	for _, loc := range locs {
		if e.bounded && loc[1] < len(body) && isValueByte(body[loc[1]]) {
			continue
		}
		decls = append(decls, body[loc[0]:loc[1]])
	}
	return decls
}

func isValueByte(c byte) bool {
	return c == '-' || c == '_' ||
		('0' <= c && c <= '9') ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z')
}

// declarationMatcher composes property, value, token and !important parts
// into the default declaration matcher for normalized tokens.
func declarationMatcher(tokens []string) *regexp.Regexp {
	key := "decl\x00" + strings.Join(tokens, "\x00")
	if re, ok := patternCache.Get(key); ok {
		return re
	}

	alt := `[^\x00-\x{10FFFF}]`
	if len(tokens) > 0 {
		alt = tokenAlternation(tokens)
	}
	re := regexp.MustCompile(propertyExpr + valueExpr + safeEmptyExpr + "(?:" + alt + ")" + importantExpr)
	patternCache.Add(key, re)
	return re
}

// splitSelectorList splits a selector list on top-level commas, leaving
// commas inside :is(a, b) or [attr="a,b"] alone.
func splitSelectorList(selector string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(selector); i++ {
		switch selector[i] {
		case '"', '\'':
			i = skipString(selector, i) - 1
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(selector[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(selector[start:]))
}
