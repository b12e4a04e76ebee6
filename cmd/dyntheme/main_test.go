package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/dyntheme/pkg/devserver"
	"github.com/gnana997/dyntheme/pkg/plugin"
)

// --- helpers ---

type testApp struct {
	*app
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(env map[string]string) *testApp {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testApp{
		app: &app{
			in:     strings.NewReader(""),
			out:    out,
			errOut: errOut,
			lookup: envconfig.MapLookuper(env),
		},
		out:    out,
		errOut: errOut,
	}
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(ta.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const colorConfig = `minify: false
color:
  colorVariables: ["#fff"]
  wrapperCssSelector: ".dark"
  verbose: false
`

// --- config ---

func TestLoadEnv(t *testing.T) {
	env, err := loadEnv(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)
	assert.Equal(t, "info", env.LogLevel)
	assert.Equal(t, "text", env.LogFormat)
	assert.Equal(t, defaultConfigFile, env.Config)
	assert.Empty(t, env.Node)

	env, err = loadEnv(context.Background(), envconfig.MapLookuper(map[string]string{
		"DYNTHEME_LOG_LEVEL": "debug",
		"DYNTHEME_NODE":      "/usr/bin/node",
		"DYNTHEME_CONFIG":    "theme.yaml",
	}))
	require.NoError(t, err)
	assert.Equal(t, "debug", env.LogLevel)
	assert.Equal(t, "/usr/bin/node", env.Node)
	assert.Equal(t, "theme.yaml", env.Config)
}

func TestLoadProjectConfig(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "dyntheme.yaml", `root: web
outDir: out
exclude: ["legacy/**"]
color:
  colorVariables: ["#1890ff", "rgb(24, 144, 255)"]
dark:
  darkModifyVars:
    primary-color: "#177ddc"
  filter: ["**/*.less", "!**/vendor/**"]
`)

	cfg, err := loadProjectConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "web"), cfg.Root)
	require.NotNil(t, cfg.Color)
	assert.Equal(t, []string{"#1890ff", "rgb(24, 144, 255)"}, cfg.Color.ColorVariables)
	require.NotNil(t, cfg.Dark)
	assert.Equal(t, "#177ddc", cfg.Dark.DarkModifyVars["primary-color"])
	assert.Equal(t, []string{"**/*.less", "!**/vendor/**"}, cfg.Dark.FilterGlobs)

	env := cfg.sessionEnv("build")
	assert.Equal(t, "out", env.OutDir)
	assert.Equal(t, "assets", env.AssetsDir)
	assert.True(t, env.Minify)

	disc := cfg.discovery()
	assert.Contains(t, disc.Exclude, "legacy/**")
	assert.Contains(t, disc.Exclude, "node_modules/**")
}

func TestLoadProjectConfig_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "dyntheme.yaml")

	cfg, err := loadProjectConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Root)
	assert.Nil(t, cfg.Color)

	_, err = loadProjectConfig(missing, true)
	assert.Error(t, err)
}

func TestLoadProjectConfig_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dyntheme.yaml", "color: [unclosed")
	_, err := loadProjectConfig(path, true)
	assert.ErrorContains(t, err, "failed to parse")
}

// --- commands ---

func TestVersionCmd(t *testing.T) {
	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "version"))
	assert.Equal(t, "dyntheme version "+version+"\n", ta.out.String())
}

func TestBuildCmd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dyntheme.yaml", colorConfig)
	writeFile(t, root, "src/a.css", ".a { color: #fff; margin: 0 }")
	writeFile(t, root, "src/b.css", ".b { width: 1px }")

	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "build", "--root", root))

	matches, err := filepath.Glob(filepath.Join(root, "dist", "assets", "app-theme-style.*.css"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, ".dark .a {color: #fff}", string(data))

	assert.Contains(t, ta.out.String(), "2 stylesheets")
	assert.Contains(t, ta.out.String(), matches[0])
}

func TestBuildCmd_OutDirFlag(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dyntheme.yaml", colorConfig)
	writeFile(t, root, "a.css", ".a { color: #fff }")

	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "build", "--root", root, "--out-dir", "public"))

	matches, err := filepath.Glob(filepath.Join(root, "public", "assets", "app-theme-style.*.css"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestBuildCmd_NoTheme(t *testing.T) {
	root := t.TempDir()
	ta := newTestApp(nil)
	err := ta.run(t, "build", "--root", root)
	assert.ErrorIs(t, err, errNoTheme)
}

func TestBuildCmd_ExplicitConfigMustExist(t *testing.T) {
	ta := newTestApp(nil)
	err := ta.run(t, "build", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestExtractCmd_Stdin(t *testing.T) {
	ta := newTestApp(nil)
	ta.in = strings.NewReader(".a { color: #fff; margin: 0 } .b { width: 1px }")

	require.NoError(t, ta.run(t, "extract", "--root", t.TempDir(), "--tokens", "#fff", "--wrapper", ".dark"))
	assert.Equal(t, ".dark .a {color: #fff}\n", ta.out.String())
}

func TestExtractCmd_FilesAndConfigTokens(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dyntheme.yaml", colorConfig)
	a := writeFile(t, root, "a.css", ".a { color: #fff }")
	b := writeFile(t, root, "b.css", ".b { width: 1px }")

	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "extract", "--root", root, "--pretty", a, b))
	assert.Equal(t, ".dark .a {\n\tcolor:#fff\n}\n\n", ta.out.String())
}

func TestExtractCmd_JSModule(t *testing.T) {
	root := t.TempDir()
	mod := writeFile(t, root, "a.css.js", `export default ".a { color: #fff }"`)

	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "extract", "--root", root, "-t", "#fff", mod))
	assert.Equal(t, ".a {color: #fff}\n", ta.out.String())
}

func TestExtractCmd_RequiresTokens(t *testing.T) {
	ta := newTestApp(nil)
	err := ta.run(t, "extract", "--root", t.TempDir())
	assert.ErrorContains(t, err, "no color tokens")
}

func TestClientCmd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dyntheme.yaml", colorConfig)
	src := writeFile(t, root, "client.js", "const output = "+plugin.PlaceholderColorOutput+";\nconst prod = "+plugin.PlaceholderProd+";\n")

	ta := newTestApp(nil)
	require.NoError(t, ta.run(t, "client", "--root", root, src))

	out := ta.out.String()
	assert.Contains(t, out, `const output = "/assets/app-theme-style.`)
	assert.Contains(t, out, "const prod = true;")
	assert.NotContains(t, out, "__DYNTHEME_")

	ta = newTestApp(nil)
	dst := filepath.Join(root, "out.js")
	require.NoError(t, ta.run(t, "client", "--root", root, "--dev", "--out", dst, src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "const prod = false;")
}

func TestRunWatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dyntheme.yaml", colorConfig)
	a := writeFile(t, root, "src/a.css", ".a { color: #fff }")

	ta := newTestApp(nil)
	cmd := newRootCmd(ta.app)
	cmd.SetContext(context.Background())
	require.NoError(t, ta.setup(cmd, nil))
	ta.root = root

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- ta.runWatch(ctx, watchOptions{addr: "127.0.0.1:0", debounce: 20 * time.Millisecond}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errCh:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("dev server did not start")
	}
	assert.Contains(t, ta.out.String(), "1 modules queued")

	resp, err := http.Get("http://" + addr + devserver.QueuePath)
	require.NoError(t, err)
	var msgs []devserver.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	resp.Body.Close()

	require.Len(t, msgs, 1)
	assert.Equal(t, a, msgs[0].ID)
	assert.Contains(t, msgs[0].CSS, ".dark .a")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
