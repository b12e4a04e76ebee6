// Package plugin adapts the extraction engine to a bundler's hook
// lifecycle: ConfigResolved, then Transform for every module, then
// WriteBundle and CloseBundle once per build.
package plugin

import (
	"context"
	"errors"
	"regexp"
	"sort"

	"github.com/gnana997/dyntheme/pkg/session"
)

// ClientModule is the import path of the browser runtime that applies
// theme styles. Dev transforms import addCssToQueue from it.
const ClientModule = "/@dyntheme/client.js"

// cssLangRE matches module ids the color plugin handles.
var cssLangRE = regexp.MustCompile(`\.(css|less|sass|scss|styl|stylus|postcss)($|\?)`)

// ErrNoColorVariables is reported when a color plugin is configured
// without tokens. The plugin then passes every module through.
var ErrNoColorVariables = errors.New("colorVariables must not be empty")

// TransformResult is the replacement body of a transformed module.
type TransformResult struct {
	Code string

	// CombineMap asks the host to chain the incoming source map onto Code.
	CombineMap bool
}

// Plugin is one participant in the build lifecycle.
type Plugin interface {
	Name() string

	// ConfigResolved binds the plugin to a session. It is called once,
	// before any other hook.
	ConfigResolved(ctx context.Context, sess *session.Session) error

	// Transform returns nil when the module is left untouched.
	Transform(ctx context.Context, id, code string) (*TransformResult, error)

	TransformIndexHTML(html string) string

	// WriteBundle runs once after every Transform of a build has returned.
	WriteBundle(ctx context.Context) error

	CloseBundle()
}

// Enforce fixes a plugin's position in the transform chain.
type Enforce int

const (
	EnforceNormal Enforce = iota
	// EnforcePre runs before plugins without an order, on the module source.
	EnforcePre
	// EnforcePost runs after them, on what they produced.
	EnforcePost
)

// Enforcer is implemented by plugins that need a fixed chain position.
type Enforcer interface {
	Enforce() Enforce
}

// Sort returns plugins ordered pre, normal, post. Plugins in the same group
// keep their relative order.
func Sort(plugins []Plugin) []Plugin {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})
	return sorted
}

func rank(p Plugin) int {
	e, ok := p.(Enforcer)
	if !ok {
		return 1
	}
	switch e.Enforce() {
	case EnforcePre:
		return 0
	case EnforcePost:
		return 2
	default:
		return 1
	}
}

// StyleDecoder recovers stylesheet text from a module body.
type StyleDecoder interface {
	StyleString(code string) (string, error)
}

// StyleDecoderFunc adapts a function to StyleDecoder.
type StyleDecoderFunc func(code string) (string, error)

func (f StyleDecoderFunc) StyleString(code string) (string, error) {
	return f(code)
}

// IsStylesheet reports whether the color plugin handles id.
func IsStylesheet(id string) bool {
	return cssLangRE.MatchString(id)
}
