// Package minify compresses the aggregated theme stylesheet.
package minify

import (
	"context"
	"fmt"
	"strings"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

const mediaType = "text/css"

// Result is minified CSS plus non-fatal findings about the input.
type Result struct {
	CSS      string
	Warnings []string
}

// Minifier compresses a stylesheet. A returned error aborts the write of
// the theme file; warnings are only reported.
type Minifier interface {
	Minify(ctx context.Context, css string) (Result, error)
}

// Error is a minification failure.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("minify css: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CSS minifies with tdewolff/minify.
type CSS struct {
	m *tdminify.M
}

// NewCSS returns a CSS minifier.
func NewCSS() *CSS {
	m := tdminify.New()
	m.AddFunc(mediaType, css.Minify)
	return &CSS{m: m}
}

// Minify compresses source.
func (c *CSS) Minify(ctx context.Context, source string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out, err := c.m.String(mediaType, source)
	if err != nil {
		return Result{}, &Error{Err: err}
	}

	return Result{CSS: out, Warnings: inspect(source)}, nil
}

// inspect reports input problems the minifier tolerates silently.
func inspect(source string) []string {
	var warnings []string
	if open, closed := strings.Count(source, "{"), strings.Count(source, "}"); open != closed {
		warnings = append(warnings, fmt.Sprintf("unbalanced braces: %d '{' vs %d '}'", open, closed))
	}
	if strings.Contains(source, "{}") {
		warnings = append(warnings, "empty rule blocks dropped")
	}
	return warnings
}
