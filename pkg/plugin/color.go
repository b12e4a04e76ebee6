package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gnana997/dyntheme/pkg/extractor"
	"github.com/gnana997/dyntheme/pkg/minify"
	"github.com/gnana997/dyntheme/pkg/session"
)

const colorPluginName = "dyntheme:color"

// ColorTheme extracts declarations that use the configured color tokens
// into a theme stylesheet. In dev runs every module registers its theme
// css with the runtime queue; in builds the pieces are aggregated into one
// file written by WriteBundle.
type ColorTheme struct {
	opts       ColorOptions
	decoder    StyleDecoder
	minifier   minify.Minifier
	report     io.Writer
	extract    extractor.VariableExtractor
	outputName string
	disabled   bool

	sess   *session.Session
	store  *session.Store
	logger *slog.Logger
}

// NewColorTheme creates the color plugin. decoder may be nil when modules
// arrive as plain stylesheet text.
func NewColorTheme(opts ColorOptions, decoder StyleDecoder, minifier minify.Minifier) *ColorTheme {
	opts = opts.withDefaults()

	p := &ColorTheme{
		opts:     opts,
		decoder:  decoder,
		minifier: minifier,
		report:   os.Stdout,
		disabled: len(opts.ColorVariables) == 0,
		logger:   slog.Default(),
	}

	switch {
	case opts.ExtractVariables != nil:
		p.extract = opts.ExtractVariables
	case opts.ResolveSelector != nil:
		p.extract = extractor.New(opts.ColorVariables, extractor.WithSelectorResolver(opts.ResolveSelector))
	default:
		p.extract = extractor.New(opts.ColorVariables, extractor.WithSelectorResolver(extractor.WrapperResolver(opts.WrapperCSSSelector)))
	}

	p.outputName = session.OutputName(opts.FileName,
		colorPluginName,
		strings.Join(opts.ColorVariables, ","),
		opts.WrapperCSSSelector)
	return p
}

func (p *ColorTheme) Name() string { return colorPluginName }

// Enforce runs the plugin last so it sees compiled stylesheet modules.
func (p *ColorTheme) Enforce() Enforce { return EnforcePost }

// OutputName is the file name WriteBundle writes.
func (p *ColorTheme) OutputName() string { return p.outputName }

// Options returns the resolved options.
func (p *ColorTheme) Options() ColorOptions { return p.opts }

// Disabled reports whether the plugin passes every module through.
func (p *ColorTheme) Disabled() bool { return p.disabled }

// SetReportOutput redirects the CloseBundle report.
func (p *ColorTheme) SetReportOutput(w io.Writer) { p.report = w }

func (p *ColorTheme) ConfigResolved(ctx context.Context, sess *session.Session) error {
	p.sess = sess
	p.store = sess.Store(colorPluginName)
	p.logger = sess.Logger().With("plugin", colorPluginName)

	if p.disabled {
		p.logger.Error("color plugin disabled", "error", ErrNoColorVariables)
	}
	return nil
}

func (p *ColorTheme) Transform(ctx context.Context, id, code string) (*TransformResult, error) {
	if p.disabled || p.sess == nil || !IsStylesheet(id) {
		return nil, nil
	}

	css := code
	if p.decoder != nil {
		decoded, err := p.decoder.StyleString(code)
		if err != nil {
			return nil, fmt.Errorf("failed to read style module %s: %w", id, err)
		}
		css = decoded
	}

	themeCSS := p.extract.ExtractVariables(css)
	if themeCSS == "" {
		return nil, nil
	}

	env := p.sess.Env()
	if !env.IsDev() {
		p.store.Aggregate.Add(id, themeCSS)
		return nil, nil
	}

	formatted := extractor.FormatCSS(themeCSS)
	if sink := p.sess.DevSink(); sink != nil {
		sink.Push(id, formatted)
	}

	lines := []string{
		"import { addCssToQueue } from " + jsonString(ClientModule),
		"const themeCssId = " + jsonString(id),
		"const themeCssStr = " + jsonString(formatted),
		"addCssToQueue(themeCssId, themeCssStr)",
		code,
	}
	return &TransformResult{
		Code:       strings.Join(lines, "\n"),
		CombineMap: env.Sourcemap,
	}, nil
}

func (p *ColorTheme) TransformIndexHTML(html string) string { return html }

func (p *ColorTheme) WriteBundle(ctx context.Context) error {
	if p.disabled || p.sess == nil || p.sess.Env().IsDev() {
		return nil
	}
	_, err := Finalize(ctx, p.sess.Env(), p.logger, p.store.Aggregate, p.outputName, p.minifier)
	return err
}

func (p *ColorTheme) CloseBundle() {
	if p.sess == nil {
		return
	}
	if !p.disabled && *p.opts.Verbose && !p.sess.Env().IsDev() {
		Report(p.report, p.sess.Env(), p.outputName)
	}
	p.sess.Release(colorPluginName)
}

// jsonString quotes s as a javascript string literal.
func jsonString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
