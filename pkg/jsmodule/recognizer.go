// Package jsmodule recovers stylesheet text from the javascript modules a
// dev server or bundler wraps stylesheets in.
//
// Two shapes are recognized:
//
//	import { updateStyle } from "/@vite/client"
//	const css = ".a { color: red }"          // dev, also __vite__css
//
//	export default ".a { color: red }"       // build
//
// Anything else is treated as plain stylesheet text and returned as is.
package jsmodule

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dyntheme/pkg/util"
)

// ClientEntry is the dev client import that marks a wrapped stylesheet.
const ClientEntry = "/@vite/client"

// styleIdentifiers are the declarations the dev server stores CSS in.
var styleIdentifiers = map[string]bool{
	"css":         true,
	"__vite__css": true,
}

// Recognizer extracts embedded CSS from javascript modules.
//
// A Recognizer is safe for concurrent use and must be closed via Close.
type Recognizer struct {
	pool   *parserPool
	logger *slog.Logger

	mutex  sync.Mutex
	closed bool
	stats  Stats
}

// Stats counts recognizer activity.
type Stats struct {
	Parsed      int
	Recognized  int
	Passthrough int
}

// NewRecognizer creates a Recognizer whose parser pool matches the worker
// pool size (poolSize 0 selects the CPU based default).
func NewRecognizer(poolSize int, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		pool:   newParserPool(util.GetOptimalPoolSizeWithOverride(poolSize), logger),
		logger: logger,
	}
}

// StyleString returns the stylesheet carried by code. When code is not a
// recognized module wrapper it is returned unchanged, as is a wrapper
// whose module fails to parse.
func (r *Recognizer) StyleString(code string) (string, error) {
	dev := strings.Contains(code, ClientEntry)
	if !dev && !strings.Contains(code, "export default") {
		r.count(func(s *Stats) { s.Passthrough++ })
		return code, nil
	}

	source := []byte(code)
	tree, err := r.parse(source)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		r.logger.Debug("javascript module has syntax errors, scanning partial tree")
	}

	var literal *ts.Node
	if dev {
		literal = findStyleDeclaration(root, source)
	}
	if literal == nil {
		literal = findDefaultExport(root)
	}
	if literal == nil {
		r.count(func(s *Stats) { s.Passthrough++ })
		return code, nil
	}

	css, ok := decodeStringLiteral(literal.Utf8Text(source))
	if !ok {
		r.count(func(s *Stats) { s.Passthrough++ })
		return code, nil
	}
	r.count(func(s *Stats) { s.Recognized++ })
	return css, nil
}

func (r *Recognizer) parse(source []byte) (*ts.Tree, error) {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return nil, fmt.Errorf("recognizer is closed")
	}
	r.stats.Parsed++
	r.mutex.Unlock()

	parser, err := r.pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := parser.Parse(source, nil)
	r.pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}
	return tree, nil
}

// findStyleDeclaration finds `const css = "..."` at the top level.
func findStyleDeclaration(root *ts.Node, source []byte) *ts.Node {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		decl := root.NamedChild(i)
		if decl == nil {
			continue
		}
		kind := decl.Kind()
		if kind != "lexical_declaration" && kind != "variable_declaration" {
			continue
		}
		for j := uint(0); j < decl.NamedChildCount(); j++ {
			child := decl.NamedChild(j)
			if child == nil || child.Kind() != "variable_declarator" {
				continue
			}
			name := child.ChildByFieldName("name")
			if name == nil || !styleIdentifiers[name.Utf8Text(source)] {
				continue
			}
			if value := child.ChildByFieldName("value"); value != nil && value.Kind() == "string" {
				return value
			}
		}
	}
	return nil
}

// findDefaultExport finds `export default "..."` at the top level.
func findDefaultExport(root *ts.Node) *ts.Node {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Kind() != "export_statement" {
			continue
		}
		if value := stmt.ChildByFieldName("value"); value != nil && value.Kind() == "string" {
			return value
		}
	}
	return nil
}

func (r *Recognizer) count(fn func(*Stats)) {
	r.mutex.Lock()
	fn(&r.stats)
	r.mutex.Unlock()
}

// Stats returns a snapshot of recognizer activity.
func (r *Recognizer) Stats() Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stats
}

// ParsersCreated reports how many parsers the pool has built.
func (r *Recognizer) ParsersCreated() int {
	return r.pool.createdCount()
}

// Close releases the parser pool. Further calls to StyleString fail.
func (r *Recognizer) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	closed := r.pool.close()
	r.logger.Debug("closed javascript recognizer",
		"parsers_closed", closed,
		"parsed", r.stats.Parsed,
		"recognized", r.stats.Recognized)
	return nil
}
