package plugin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/dyntheme/pkg/extractor"
	"github.com/gnana997/dyntheme/pkg/less"
	"github.com/gnana997/dyntheme/pkg/minify"
	"github.com/gnana997/dyntheme/pkg/session"
	"github.com/gnana997/dyntheme/pkg/util"
)

type recordingSink struct {
	ids []string
	css []string
}

func (r *recordingSink) Push(id, css string) {
	r.ids = append(r.ids, id)
	r.css = append(r.css, css)
}

type fakeMinifier struct {
	res minify.Result
	err error
}

func (f fakeMinifier) Minify(ctx context.Context, css string) (minify.Result, error) {
	return f.res, f.err
}

// fakeLess returns compiled for theme compiles and echoes flattening
// requests with a FLAT marker.
type fakeLess struct {
	compiled string
	err      error
	calls    atomic.Int32

	mu      sync.Mutex
	sources []string
}

func (f *fakeLess) Compile(ctx context.Context, req less.Request) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sources = append(f.sources, req.Source)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if req.JavascriptEnabled {
		return f.compiled, nil
	}
	return "FLAT" + req.Source, nil
}

func newSession(t *testing.T, cmd session.Command, opts ...session.Option) *session.Session {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(util.DiscardLogger())}, opts...)
	return session.New(session.Env{Command: cmd, Root: t.TempDir()}, opts...)
}

func TestIsStylesheet(t *testing.T) {
	assert.True(t, IsStylesheet("src/a.css"))
	assert.True(t, IsStylesheet("src/a.less?used"))
	assert.True(t, IsStylesheet("/x/a.postcss"))
	assert.False(t, IsStylesheet("src/a.ts"))
	assert.False(t, IsStylesheet("src/a.css.map"))
}

func TestGlobFilter(t *testing.T) {
	f, err := GlobFilter([]string{"**/*.less", "!**/node_modules/**"})
	require.NoError(t, err)

	assert.True(t, f.Match("src/a.less"))
	assert.False(t, f.Match("node_modules/antd/a.less"))
	assert.False(t, f.Match("src/a.css"))

	excludeOnly, err := GlobFilter([]string{"!**/vendor/**"})
	require.NoError(t, err)
	assert.True(t, excludeOnly.Match("src/a.less"))
	assert.False(t, excludeOnly.Match("src/vendor/a.less"))

	_, err = GlobFilter([]string{"src/[a"})
	assert.Error(t, err)
}

func TestOptionDefaults(t *testing.T) {
	color := ColorOptions{}.withDefaults()
	assert.Equal(t, "app-theme-style", color.FileName)
	assert.Equal(t, InjectToBody, color.InjectTo)
	assert.True(t, *color.Verbose)

	dark, err := DarkOptions{Verbose: Bool(false)}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, "app-antd-dark-theme-style", dark.FileName)
	assert.Equal(t, `data-theme="dark"`, dark.Selector)
	assert.Equal(t, LoadMethodLink, dark.LoadMethod)
	assert.True(t, *dark.ExtractCSS)
	assert.False(t, *dark.Verbose)
	assert.Nil(t, dark.Filter)

	_, err = DarkOptions{FilterGlobs: []string{"[x"}}.withDefaults()
	assert.Error(t, err)
}

func TestColorTheme_EmptyVariablesIsNoop(t *testing.T) {
	p := NewColorTheme(ColorOptions{}, nil, nil)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))

	assert.True(t, p.Disabled())
	res, err := p.Transform(context.Background(), "a.css", ".a{color:#fff}")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.NoError(t, p.WriteBundle(context.Background()))
}

func TestColorTheme_SkipsNonStylesheets(t *testing.T) {
	p := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, nil, nil)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))

	res, err := p.Transform(context.Background(), "src/main.ts", ".a{color:#fff}")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = p.Transform(context.Background(), "src/a.css", ".a{width:1px}")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestColorTheme_Dev(t *testing.T) {
	sink := &recordingSink{}
	p := NewColorTheme(ColorOptions{
		ColorVariables:     []string{"#1890ff"},
		WrapperCSSSelector: ".dark",
	}, nil, nil)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe, session.WithDevSink(sink))))

	code := ".btn { color: #1890ff; width: 10px }"
	res, err := p.Transform(context.Background(), "src/a.css", code)
	require.NoError(t, err)
	require.NotNil(t, res)

	lines := strings.Split(res.Code, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `import { addCssToQueue } from "/@dyntheme/client.js"`, lines[0])
	assert.Equal(t, `const themeCssId = "src/a.css"`, lines[1])
	assert.Equal(t, `const themeCssStr = ".dark .btn {\n\tcolor:#1890ff\n}\n"`, lines[2])
	assert.Equal(t, `addCssToQueue(themeCssId, themeCssStr)`, lines[3])
	assert.Equal(t, code, lines[4])

	assert.Equal(t, []string{"src/a.css"}, sink.ids)
	assert.Equal(t, []string{".dark .btn {\n\tcolor:#1890ff\n}\n"}, sink.css)
}

func TestColorTheme_DecodesModules(t *testing.T) {
	decoder := StyleDecoderFunc(func(code string) (string, error) {
		return strings.TrimPrefix(code, "export default "), nil
	})
	p := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, decoder, nil)
	sess := newSession(t, session.CommandBuild)
	require.NoError(t, p.ConfigResolved(context.Background(), sess))

	res, err := p.Transform(context.Background(), "a.css", "export default .a {color: #fff}")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, ".a {color: #fff}", sess.Store(colorPluginName).Aggregate.Finalize())

	failing := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, StyleDecoderFunc(func(string) (string, error) {
		return "", errors.New("boom")
	}), nil)
	require.NoError(t, failing.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))
	_, err = failing.Transform(context.Background(), "a.css", "x")
	assert.Error(t, err)
}

func TestColorTheme_CustomStrategies(t *testing.T) {
	sess := newSession(t, session.CommandBuild)

	resolved := NewColorTheme(ColorOptions{
		ColorVariables:  []string{"#fff"},
		ResolveSelector: extractor.ResolverFunc(func(s string) string { return "html.theme " + s }),
	}, nil, nil)
	require.NoError(t, resolved.ConfigResolved(context.Background(), sess))
	_, err := resolved.Transform(context.Background(), "a.css", ".a{color:#fff}")
	require.NoError(t, err)
	assert.Equal(t, "html.theme .a {color:#fff}", sess.Store(colorPluginName).Aggregate.Finalize())

	custom := NewColorTheme(ColorOptions{
		ColorVariables:   []string{"#fff"},
		ExtractVariables: extractor.ExtractFunc(func(string) string { return ".custom{}" }),
	}, nil, nil)
	sess2 := newSession(t, session.CommandBuild)
	require.NoError(t, custom.ConfigResolved(context.Background(), sess2))
	_, err = custom.Transform(context.Background(), "a.css", ".a{width:1px}")
	require.NoError(t, err)
	assert.Equal(t, ".custom{}", sess2.Store(colorPluginName).Aggregate.Finalize())
}

func TestColorTheme_BuildWritesAggregate(t *testing.T) {
	sess := newSession(t, session.CommandBuild)
	p := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff", "#000"}}, nil, nil)
	var report bytes.Buffer
	p.SetReportOutput(&report)
	require.NoError(t, p.ConfigResolved(context.Background(), sess))

	ctx := context.Background()
	for _, m := range []struct{ id, code string }{
		{"a.css", ".a{color:#fff}"},
		{"b.css", ".b{color:#000}"},
		{"a.css", ".a{background:#000}"},
	} {
		res, err := p.Transform(ctx, m.id, m.code)
		require.NoError(t, err)
		assert.Nil(t, res)
	}

	require.NoError(t, p.WriteBundle(ctx))

	data, err := os.ReadFile(sess.Env().OutputPath(p.OutputName()))
	require.NoError(t, err)
	assert.Equal(t, ".a {background:#000}.b {color:#000}", string(data))

	p.CloseBundle()
	assert.Contains(t, report.String(), "dist/")
	assert.Contains(t, report.String(), "assets/"+p.OutputName())
	assert.Contains(t, report.String(), "B")
	assert.NotContains(t, report.String(), "❌")
}

func TestColorTheme_OutputNameStable(t *testing.T) {
	a := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, nil, nil)
	b := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, nil, nil)
	c := NewColorTheme(ColorOptions{ColorVariables: []string{"#000"}, FileName: "theme"}, nil, nil)

	assert.Equal(t, a.OutputName(), b.OutputName())
	assert.True(t, strings.HasPrefix(a.OutputName(), "app-theme-style."))
	assert.True(t, strings.HasPrefix(c.OutputName(), "theme."))
}

func TestFinalize_Minify(t *testing.T) {
	sess := newSession(t, session.CommandBuild)
	env := sess.Env()
	env.Minify = true
	agg := sess.Store("x").Aggregate
	agg.Add("a", ".a { color: red }")

	path, err := Finalize(context.Background(), env, util.DiscardLogger(), agg, "out.css",
		fakeMinifier{res: minify.Result{CSS: ".a{color:red}", Warnings: []string{"w"}}})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", string(data))

	_, err = Finalize(context.Background(), env, util.DiscardLogger(), agg, "fail.css",
		fakeMinifier{err: &minify.Error{Err: errors.New("bad")}})
	var minErr *minify.Error
	assert.ErrorAs(t, err, &minErr)
	assert.NoFileExists(t, env.OutputPath("fail.css"))
}

func TestReport_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, session.Env{Root: t.TempDir(), OutDir: "dist", AssetsDir: "assets"}, "missing.css")
	assert.Contains(t, buf.String(), "❌")
}

func TestDarkTheme_RequiresCompiler(t *testing.T) {
	_, err := NewDarkTheme(DarkOptions{}, nil, nil)
	assert.Error(t, err)
}

func TestDarkTheme_Dev(t *testing.T) {
	compiler := &fakeLess{compiled: ".btn {color: #000000;width: 10px}\n.plain {width: 1px}\n"}
	p, err := NewDarkTheme(DarkOptions{DarkModifyVars: map[string]string{"primary": "#000000"}}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))

	code := "@primary: #1890ff;\n.btn { color: @primary; width: 10px }"
	res, err := p.Transform(context.Background(), "src/a.less", code)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, `[data-theme="dark"] {.btn {color: #000000}}`+"\n"+code, res.Code)

	res2, err := p.Transform(context.Background(), "src/a.less", code)
	require.NoError(t, err)
	assert.Equal(t, res.Code, res2.Code)
	assert.Equal(t, int32(1), compiler.calls.Load())
}

func TestDarkTheme_DevPushesFlattenedCSS(t *testing.T) {
	sink := &recordingSink{}
	compiler := &fakeLess{compiled: ".btn {color: #000000;width: 10px}"}
	p, err := NewDarkTheme(DarkOptions{Selector: ".dark"}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe, session.WithDevSink(sink))))

	_, err = p.Transform(context.Background(), "/x/a.less", "@primary: #1890ff; .btn{color:@primary}")
	require.NoError(t, err)

	assert.Equal(t, []string{"/x/a.less#dark"}, sink.ids)
	assert.Equal(t, []string{"FLAT[.dark] {.btn {color: #000000}}"}, sink.css)
	assert.Equal(t, DarkQueueID("/x/a.less"), sink.ids[0])
}

func TestSort(t *testing.T) {
	color := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, nil, nil)
	dark, err := NewDarkTheme(DarkOptions{}, &fakeLess{}, nil)
	require.NoError(t, err)
	client := NewClientInjector(color, dark)
	plain := &passthrough{}

	got := Sort([]Plugin{color, plain, dark, client})
	assert.Equal(t, []Plugin{dark, client, plain, color}, got)
}

type passthrough struct{}

func (passthrough) Name() string { return "passthrough" }
func (passthrough) ConfigResolved(ctx context.Context, sess *session.Session) error { return nil }
func (passthrough) Transform(ctx context.Context, id, code string) (*TransformResult, error) {
	return nil, nil
}
func (passthrough) TransformIndexHTML(html string) string { return html }
func (passthrough) WriteBundle(ctx context.Context) error { return nil }
func (passthrough) CloseBundle() {}

// A dev chain with both theme plugins on one Less module: the dark plugin
// compiles the original source and both register with the runtime.
func TestThemeChain_Dev(t *testing.T) {
	sink := &recordingSink{}
	sess := newSession(t, session.CommandServe, session.WithDevSink(sink))
	compiler := &fakeLess{compiled: ".btn {color: #177ddc;width: 10px}"}

	color := NewColorTheme(ColorOptions{ColorVariables: []string{"#1890ff"}}, nil, nil)
	dark, err := NewDarkTheme(DarkOptions{DarkModifyVars: map[string]string{"primary": "#177ddc"}}, compiler, nil)
	require.NoError(t, err)

	ctx := context.Background()
	chain := Sort([]Plugin{color, dark})
	for _, p := range chain {
		require.NoError(t, p.ConfigResolved(ctx, sess))
	}

	id := "/x/a.less"
	source := "@primary: #1890ff;\n.btn { color: #1890ff; width: 10px }"
	code := source
	for _, p := range chain {
		res, err := p.Transform(ctx, id, code)
		require.NoError(t, err)
		if res != nil {
			code = res.Code
		}
	}

	require.NotEmpty(t, compiler.sources)
	assert.Equal(t, source, compiler.sources[0])
	for _, src := range compiler.sources {
		assert.NotContains(t, src, "import { addCssToQueue }")
	}
	assert.ElementsMatch(t, []string{DarkQueueID(id), id}, sink.ids)
	assert.True(t, strings.HasPrefix(code, "import { addCssToQueue }"))
}

func TestDarkTheme_NoColorsYieldsEmptyScope(t *testing.T) {
	compiler := &fakeLess{compiled: ".a {width: 1px}"}
	p, err := NewDarkTheme(DarkOptions{Selector: ".dark", DarkModifyVars: map[string]string{}}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))

	res, err := p.Transform(context.Background(), "a.less", "@a: 1px; .a{width:@a}")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Code, "[.dark] {}\n"))
}

func TestDarkTheme_Skips(t *testing.T) {
	compiler := &fakeLess{compiled: ".a{color:#000}"}
	p, err := NewDarkTheme(DarkOptions{FilterGlobs: []string{"!**/vendor/**"}}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))

	ctx := context.Background()
	for _, tc := range []struct{ id, code string }{
		{"a.css", "@a: #fff;"},
		{"a.less", ".a { color: red }"},
		{"src/vendor/a.less", "@a: #fff;"},
	} {
		res, err := p.Transform(ctx, tc.id, tc.code)
		require.NoError(t, err)
		assert.Nil(t, res, tc.id)
	}
	assert.Equal(t, int32(0), compiler.calls.Load())
}

func TestDarkTheme_CompileError(t *testing.T) {
	compiler := &fakeLess{err: &less.CompileError{Filename: "a.less", Line: 2, Message: "unrecognised input"}}
	p, err := NewDarkTheme(DarkOptions{}, compiler, nil)
	require.NoError(t, err)
	sess := newSession(t, session.CommandBuild)
	require.NoError(t, p.ConfigResolved(context.Background(), sess))

	_, err = p.Transform(context.Background(), "a.less", "@a: ;")
	var compileErr *less.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, 2, compileErr.Line)
	assert.Equal(t, 0, sess.Store(darkPluginName).Cache.Len())
}

func TestDarkTheme_Build(t *testing.T) {
	compiler := &fakeLess{compiled: ".btn {color: #000000;width: 10px}"}
	p, err := NewDarkTheme(DarkOptions{DarkModifyVars: map[string]string{"primary": "#000000"}, Verbose: Bool(false)}, compiler, nil)
	require.NoError(t, err)
	sess := newSession(t, session.CommandBuild)
	require.NoError(t, p.ConfigResolved(context.Background(), sess))

	res, err := p.Transform(context.Background(), "src/a.less", "@primary: #1890ff; .btn{color:@primary}")
	require.NoError(t, err)
	assert.Nil(t, res)

	require.NoError(t, p.WriteBundle(context.Background()))
	data, err := os.ReadFile(sess.Env().OutputPath(p.OutputName()))
	require.NoError(t, err)
	assert.Equal(t, `FLAT[data-theme="dark"] {.btn {color: #000000}}`+"\n", string(data))
}

func TestDarkTheme_TransformIndexHTML(t *testing.T) {
	compiler := &fakeLess{}
	doc := "<html><head><title>x</title></head><body></body></html>"

	p, err := NewDarkTheme(DarkOptions{}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))

	out := p.TransformIndexHTML(doc)
	link := `<link disabled id="__DYNTHEME_ANTD_DARK_THEME_LINK__" rel="alternate stylesheet" href="/assets/` + p.OutputName() + `">`
	assert.Contains(t, out, link)
	assert.Less(t, strings.Index(out, link), strings.Index(out, "</head>"))

	dev, err := NewDarkTheme(DarkOptions{}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, dev.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))
	assert.Equal(t, doc, dev.TransformIndexHTML(doc))

	ajax, err := NewDarkTheme(DarkOptions{LoadMethod: LoadMethodAjax}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, ajax.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))
	assert.Equal(t, doc, ajax.TransformIndexHTML(doc))

	inline, err := NewDarkTheme(DarkOptions{ExtractCSS: Bool(false)}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, inline.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))
	assert.Equal(t, doc, inline.TransformIndexHTML(doc))
}

func TestDarkTheme_Preload(t *testing.T) {
	compiler := &fakeLess{compiled: ".a {color: #111111}"}
	sess := newSession(t, session.CommandServe)
	root := sess.Env().Root

	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	code := "@c: #111111; .a{color:@c}"
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "theme.less"), []byte(code), 0o644))

	p, err := NewDarkTheme(DarkOptions{PreloadFiles: []string{"src/*.less"}}, compiler, nil)
	require.NoError(t, err)
	require.NoError(t, p.ConfigResolved(context.Background(), sess))
	assert.Equal(t, int32(1), compiler.calls.Load())

	id := filepath.Join(root, "src", "theme.less")
	res, err := p.Transform(context.Background(), id, code)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.Code, `[data-theme="dark"] {.a {color: #111111}}`))
	assert.Equal(t, int32(1), compiler.calls.Load())
}

func TestClientInjector(t *testing.T) {
	color := NewColorTheme(ColorOptions{ColorVariables: []string{"#fff"}}, nil, nil)
	dark, err := NewDarkTheme(DarkOptions{LoadMethod: LoadMethodAjax}, &fakeLess{}, nil)
	require.NoError(t, err)

	c := NewClientInjector(color, dark)
	require.NoError(t, c.ConfigResolved(context.Background(), newSession(t, session.CommandBuild)))

	src := strings.Join([]string{
		"const colorFile = __DYNTHEME_COLOR_OUTPUT__",
		"const colorOpts = __DYNTHEME_COLOR_OPTIONS__",
		"const darkFile = __DYNTHEME_DARK_OUTPUT__",
		"const darkExtract = __DYNTHEME_DARK_EXTRACT__",
		"const darkLink = __DYNTHEME_DARK_LOAD_LINK__",
		"const prod = __DYNTHEME_PROD__",
	}, "\n")

	res, err := c.Transform(context.Background(), "node_modules/dyntheme/client.js", src)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Contains(t, res.Code, `const colorFile = "/assets/`+color.OutputName()+`"`)
	assert.Contains(t, res.Code, `"colorVariables":["#fff"]`)
	assert.Contains(t, res.Code, `"injectTo":"body"`)
	assert.Contains(t, res.Code, `const darkFile = "/assets/`+dark.OutputName()+`"`)
	assert.Contains(t, res.Code, "const darkExtract = true")
	assert.Contains(t, res.Code, "const darkLink = false")
	assert.Contains(t, res.Code, "const prod = true")

	other, err := c.Transform(context.Background(), "src/main.js", src)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestClientInjector_WithoutPlugins(t *testing.T) {
	c := NewClientInjector(nil, nil)
	require.NoError(t, c.ConfigResolved(context.Background(), newSession(t, session.CommandServe)))

	res, err := c.Transform(context.Background(), ClientModule, "x(__DYNTHEME_COLOR_OUTPUT__, __DYNTHEME_DARK_LOAD_LINK__, __DYNTHEME_PROD__)")
	require.NoError(t, err)
	assert.Equal(t, "x(null, false, false)", res.Code)
}

func TestIsClientModule(t *testing.T) {
	assert.True(t, IsClientModule(ClientModule))
	assert.True(t, IsClientModule("/app/node_modules/dyntheme/client.js"))
	assert.True(t, IsClientModule("/app/node_modules/.vite/deps/dyntheme_client.js?v=1"))
	assert.False(t, IsClientModule("/app/src/client.js"))
}
