package plugin

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/dyntheme/pkg/extractor"
	"github.com/gnana997/dyntheme/pkg/less"
	"github.com/gnana997/dyntheme/pkg/minify"
	"github.com/gnana997/dyntheme/pkg/session"
)

const darkPluginName = "dyntheme:dark"

// DarkLinkID is the id of the <link> element the runtime enables to switch
// to the dark stylesheet.
const DarkLinkID = "__DYNTHEME_ANTD_DARK_THEME_LINK__"

// DarkTheme compiles Less modules with dark variable overrides and keeps
// the declarations whose values are colors, scoped under a theme
// selector.
type DarkTheme struct {
	opts       DarkOptions
	compiler   less.Compiler
	minifier   minify.Minifier
	report     io.Writer
	outputName string

	sess   *session.Session
	store  *session.Store
	logger *slog.Logger
}

// NewDarkTheme creates the dark theme plugin.
func NewDarkTheme(opts DarkOptions, compiler less.Compiler, minifier minify.Minifier) (*DarkTheme, error) {
	if compiler == nil {
		return nil, errors.New("dark theme plugin requires a less compiler")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	vars := make([]string, 0, len(opts.DarkModifyVars))
	for k, v := range opts.DarkModifyVars {
		vars = append(vars, k+"="+v)
	}
	sort.Strings(vars)

	name := session.OutputName(opts.FileName, darkPluginName, opts.Selector, strings.Join(vars, ";"))

	return &DarkTheme{
		opts:       opts,
		compiler:   compiler,
		minifier:   minifier,
		report:     os.Stdout,
		outputName: name,
		logger:     slog.Default(),
	}, nil
}

func (p *DarkTheme) Name() string { return darkPluginName }

// Enforce runs the plugin first so it compiles the Less source itself.
func (p *DarkTheme) Enforce() Enforce { return EnforcePre }

// DarkQueueID is the dev queue id the dark theme css of module id is
// registered under, kept apart from the color theme entry of the same module.
func DarkQueueID(id string) string { return id + "#dark" }

// OutputName is the file name WriteBundle writes.
func (p *DarkTheme) OutputName() string { return p.outputName }

// Options returns the resolved options.
func (p *DarkTheme) Options() DarkOptions { return p.opts }

// SetReportOutput redirects the CloseBundle report.
func (p *DarkTheme) SetReportOutput(w io.Writer) { p.report = w }

// ConfigResolved binds the session and, in dev runs, warms the cache from
// PreloadFiles.
func (p *DarkTheme) ConfigResolved(ctx context.Context, sess *session.Session) error {
	p.sess = sess
	p.store = sess.Store(darkPluginName)
	p.logger = sess.Logger().With("plugin", darkPluginName)

	if sess.Env().IsDev() {
		p.preload(ctx)
	}
	return nil
}

func (p *DarkTheme) preload(ctx context.Context) {
	root, err := filepath.Abs(p.sess.Env().Root)
	if err != nil {
		p.logger.Warn("failed to resolve root", "root", p.sess.Env().Root, "error", err)
		return
	}
	fsys := os.DirFS(root)

	for _, pattern := range p.opts.PreloadFiles {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			p.logger.Warn("invalid preload pattern", "pattern", pattern, "error", err)
			continue
		}
		for _, rel := range matches {
			id := filepath.Join(root, filepath.FromSlash(rel))
			code, err := os.ReadFile(id)
			if err != nil {
				p.logger.Warn("failed to read preload file", "file", id, "error", err)
				continue
			}
			css, err := p.process(ctx, id, string(code))
			if err != nil {
				p.logger.Warn("failed to preload file", "file", id, "error", err)
				continue
			}
			if css != "" {
				p.store.Cache.Put(id, string(code), css)
			}
		}
	}
	p.logger.Debug("preloaded dark theme files", "cached", p.store.Cache.Len())
}

// process compiles code with the dark overrides and extracts the
// declarations using one of the colors the compiled output contains, or
// transparent.
func (p *DarkTheme) process(ctx context.Context, id, code string) (string, error) {
	css, err := p.compiler.Compile(ctx, p.request(id, code, true))
	if err != nil {
		return "", err
	}
	colors := extractor.ScanColors(css)
	if len(colors) == 0 {
		return "", nil
	}
	return extractor.Extract(css, colors, nil), nil
}

func (p *DarkTheme) request(id, source string, withVars bool) less.Request {
	filename, err := filepath.Abs(id)
	if err != nil {
		filename = id
	}
	req := less.Request{
		Source:   source,
		Filename: filename,
		Paths:    []string{filepath.Dir(filename)},
	}
	if withVars {
		req.ModifyVars = p.opts.DarkModifyVars
		req.JavascriptEnabled = true
	}
	return req
}

// wrap scopes css under the theme selector.
func (p *DarkTheme) wrap(css string) string {
	return "[" + p.opts.Selector + "] {" + css + "}"
}

func (p *DarkTheme) Transform(ctx context.Context, id, code string) (*TransformResult, error) {
	if p.sess == nil || !strings.HasSuffix(id, ".less") || !strings.Contains(code, "@") {
		return nil, nil
	}
	if p.opts.Filter != nil && !p.opts.Filter.Match(id) {
		return nil, nil
	}

	themeCSS, err := p.store.Cache.GetOrCompute(ctx, id, code, func(ctx context.Context, source string) (string, error) {
		return p.process(ctx, id, source)
	})
	if err != nil {
		return nil, fmt.Errorf("dark theme %s: %w", id, err)
	}

	env := p.sess.Env()
	if env.IsDev() {
		if sink := p.sess.DevSink(); sink != nil {
			flat, err := p.flatten(ctx, id, themeCSS)
			if err != nil {
				return nil, err
			}
			sink.Push(DarkQueueID(id), flat)
		}
		return &TransformResult{
			Code:       p.wrap(themeCSS) + "\n" + code,
			CombineMap: env.Sourcemap,
		}, nil
	}

	flat, err := p.flatten(ctx, id, themeCSS)
	if err != nil {
		return nil, err
	}
	p.store.Aggregate.Add(id, flat+"\n")
	return nil, nil
}

// flatten compiles the scoped theme css without overrides so the selector
// nesting becomes plain CSS.
func (p *DarkTheme) flatten(ctx context.Context, id, themeCSS string) (string, error) {
	flat, err := p.compiler.Compile(ctx, p.request(id, p.wrap(themeCSS), false))
	if err != nil {
		return "", fmt.Errorf("dark theme %s: %w", id, err)
	}
	return flat, nil
}

// TransformIndexHTML adds the disabled alternate stylesheet link the
// runtime switches on, for builds that extract a link-loaded file.
func (p *DarkTheme) TransformIndexHTML(doc string) string {
	if p.sess == nil || p.sess.Env().IsDev() || p.opts.LoadMethod != LoadMethodLink || !*p.opts.ExtractCSS {
		return doc
	}

	tag := fmt.Sprintf(`<link disabled id="%s" rel="alternate stylesheet" href="%s">`,
		DarkLinkID, html.EscapeString(p.sess.Env().PublicPath(p.outputName)))

	if i := strings.Index(strings.ToLower(doc), "</head>"); i >= 0 {
		return doc[:i] + "  " + tag + "\n" + doc[i:]
	}
	return tag + "\n" + doc
}

func (p *DarkTheme) WriteBundle(ctx context.Context) error {
	if p.sess == nil || p.sess.Env().IsDev() {
		return nil
	}
	_, err := Finalize(ctx, p.sess.Env(), p.logger, p.store.Aggregate, p.outputName, p.minifier)
	return err
}

func (p *DarkTheme) CloseBundle() {
	if p.sess == nil {
		return
	}
	if *p.opts.Verbose && !p.sess.Env().IsDev() {
		Report(p.report, p.sess.Env(), p.outputName)
	}
	p.sess.Release(darkPluginName)
}
