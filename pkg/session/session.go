// Package session holds the state one build or dev run shares between
// plugins: the resolved environment, per-plugin caches and aggregators,
// the logger and the optional dev runtime sink.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gnana997/dyntheme/pkg/aggregate"
	"github.com/gnana997/dyntheme/pkg/cache"
)

// Command is the host command a session runs under.
type Command string

const (
	CommandServe Command = "serve"
	CommandBuild Command = "build"
)

// Env is the resolved host configuration.
type Env struct {
	Command   Command
	Root      string
	OutDir    string
	AssetsDir string
	Base      string
	Minify    bool
	Sourcemap bool
}

// WithDefaults fills unset fields with the host defaults.
func (e Env) WithDefaults() Env {
	if e.Command == "" {
		e.Command = CommandBuild
	}
	if e.Root == "" {
		e.Root = "."
	}
	if e.OutDir == "" {
		e.OutDir = "dist"
	}
	if e.AssetsDir == "" {
		e.AssetsDir = "assets"
	}
	if e.Base == "" {
		e.Base = "/"
	}
	return e
}

// IsDev reports whether the session serves a dev runtime.
func (e Env) IsDev() bool {
	return e.Command == CommandServe
}

// OutputDir is the build output directory on disk.
func (e Env) OutputDir() string {
	if filepath.IsAbs(e.OutDir) {
		return e.OutDir
	}
	return filepath.Join(e.Root, e.OutDir)
}

// OutputPath is where an asset named name is written on disk.
func (e Env) OutputPath(name string) string {
	return filepath.Join(e.OutputDir(), e.AssetsDir, name)
}

// PublicPath is the URL an asset named name is served from.
func (e Env) PublicPath(name string) string {
	return strings.TrimSuffix(e.Base, "/") + "/" + path.Join(e.AssetsDir, name)
}

// DevSink receives the (module id, css) registrations a dev runtime
// applies as live styles.
type DevSink interface {
	Push(id, css string)
}

// Store is the mutable state owned by one plugin instance.
type Store struct {
	Cache     *cache.ModuleCache
	Aggregate *aggregate.Aggregator
}

// Session is one build or dev run.
type Session struct {
	env    Env
	logger *slog.Logger
	sink   DevSink

	mutex  sync.Mutex
	stores map[string]*Store
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDevSink routes dev registrations to sink.
func WithDevSink(sink DevSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// New creates a session for env. Unset env fields take their defaults.
func New(env Env, opts ...Option) *Session {
	s := &Session{
		env:    env.WithDefaults(),
		logger: slog.Default(),
		stores: make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Env() Env {
	return s.env
}

func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// DevSink returns the dev sink, nil outside dev runs or when none is set.
func (s *Session) DevSink() DevSink {
	if !s.env.IsDev() {
		return nil
	}
	return s.sink
}

// Store returns the state for the named plugin, creating it on first use.
func (s *Session) Store(plugin string) *Store {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, ok := s.stores[plugin]
	if !ok {
		st = &Store{Cache: cache.New(), Aggregate: aggregate.New()}
		s.stores[plugin] = st
	}
	return st
}

// OrderAggregates puts the modules of every plugin's aggregate in the order
// of ids, so the output does not depend on which transform finished first.
func (s *Session) OrderAggregates(ids []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, st := range s.stores {
		st.Aggregate.Reorder(ids)
	}
}

// Release drops the state of the named plugin.
func (s *Session) Release(plugin string) {
	s.mutex.Lock()
	delete(s.stores, plugin)
	s.mutex.Unlock()
}

// OutputName returns "<fileName>.<hash>.css" where hash is the first 8 hex
// digits of a sha256 over parts. The same parts always yield the same name.
func OutputName(fileName string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fileName + "." + hex.EncodeToString(h.Sum(nil))[:8] + ".css"
}
