package session

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	ids []string
}

func (r *recordingSink) Push(id, css string) {
	r.ids = append(r.ids, id)
}

func TestEnv_WithDefaults(t *testing.T) {
	env := Env{}.WithDefaults()
	assert.Equal(t, CommandBuild, env.Command)
	assert.Equal(t, ".", env.Root)
	assert.Equal(t, "dist", env.OutDir)
	assert.Equal(t, "assets", env.AssetsDir)
	assert.Equal(t, "/", env.Base)
	assert.False(t, env.IsDev())

	env = Env{Command: CommandServe, OutDir: "out"}.WithDefaults()
	assert.True(t, env.IsDev())
	assert.Equal(t, "out", env.OutDir)
}

func TestEnv_Paths(t *testing.T) {
	env := Env{Root: "/proj", OutDir: "dist", AssetsDir: "assets", Base: "/"}
	assert.Equal(t, filepath.Join("/proj", "dist", "assets", "a.css"), env.OutputPath("a.css"))
	assert.Equal(t, "/assets/a.css", env.PublicPath("a.css"))

	env.OutDir = "/tmp/out"
	assert.Equal(t, filepath.Join("/tmp/out", "assets", "a.css"), env.OutputPath("a.css"))

	env.Base = "https://cdn.example.com/app/"
	assert.Equal(t, "https://cdn.example.com/app/assets/a.css", env.PublicPath("a.css"))
}

func TestSession_Store(t *testing.T) {
	s := New(Env{})

	a := s.Store("color")
	assert.Same(t, a, s.Store("color"))
	assert.NotSame(t, a, s.Store("dark"))

	a.Aggregate.Add("x", "y")
	s.Release("color")
	assert.Equal(t, 0, s.Store("color").Aggregate.Len())
}

func TestSession_OrderAggregates(t *testing.T) {
	s := New(Env{})
	color, dark := s.Store("color"), s.Store("dark")
	color.Aggregate.Add("b.css", "b")
	color.Aggregate.Add("a.css", "a")
	dark.Aggregate.Add("b.less", "B")
	dark.Aggregate.Add("a.less", "A")

	s.OrderAggregates([]string{"a.css", "a.less", "b.css", "b.less"})
	assert.Equal(t, "ab", color.Aggregate.Finalize())
	assert.Equal(t, "AB", dark.Aggregate.Finalize())
}

func TestSession_DevSink(t *testing.T) {
	sink := &recordingSink{}

	build := New(Env{Command: CommandBuild}, WithDevSink(sink))
	assert.Nil(t, build.DevSink())

	dev := New(Env{Command: CommandServe}, WithDevSink(sink), WithLogger(nil))
	assert.NotNil(t, dev.DevSink())
	assert.NotNil(t, dev.Logger())

	dev.DevSink().Push("a.css", ".a{}")
	assert.Equal(t, []string{"a.css"}, sink.ids)
}

func TestOutputName(t *testing.T) {
	name := OutputName("app-theme-style", "color", "#fff")
	assert.Regexp(t, regexp.MustCompile(`^app-theme-style\.[0-9a-f]{8}\.css$`), name)
	assert.Equal(t, name, OutputName("app-theme-style", "color", "#fff"))
	assert.NotEqual(t, name, OutputName("app-theme-style", "color", "#000"))
	assert.NotEqual(t, OutputName("x", "ab", "c"), OutputName("x", "a", "bc"))
}
