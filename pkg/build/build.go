// Package build drives the plugin lifecycle over a project tree: it
// discovers stylesheets, transforms them on a worker pool and finalizes
// every plugin once all transforms have returned.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/session"
	"github.com/gnana997/dyntheme/pkg/util"
)

// Options configures a Builder.
type Options struct {
	Discovery DiscoveryConfig
	// Workers is the pool size, 0 for the CPU based default.
	Workers int
	// Files reads sources; nil creates a cache closed at the end of Run.
	Files util.FileCache
}

// Result summarizes a build.
type Result struct {
	Files    int
	Bytes    int64
	Outputs  []string
	HTML     string
	Duration time.Duration
}

// Builder runs one build session.
type Builder struct {
	sess    *session.Session
	plugins []plugin.Plugin
	opts    Options
	logger  *slog.Logger
}

// New creates a Builder. The session must be a build session. Plugins run
// in their enforced order.
func New(sess *session.Session, plugins []plugin.Plugin, opts Options) *Builder {
	return &Builder{
		sess:    sess,
		plugins: plugin.Sort(plugins),
		opts:    opts,
		logger:  sess.Logger(),
	}
}

// Transform runs every plugin's Transform over one module in order, each
// seeing the previous plugin's output.
func Transform(ctx context.Context, plugins []plugin.Plugin, id, code string) (string, error) {
	for _, p := range plugins {
		res, err := p.Transform(ctx, id, code)
		if err != nil {
			return "", fmt.Errorf("[%s] %w", p.Name(), err)
		}
		if res != nil {
			code = res.Code
		}
	}
	return code, nil
}

// Run executes the build. A transform failure aborts it before anything
// is written.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	env := b.sess.Env()
	if env.IsDev() {
		return nil, errors.New("build requires a build session")
	}

	for _, p := range b.plugins {
		if err := p.ConfigResolved(ctx, b.sess); err != nil {
			return nil, fmt.Errorf("[%s] config: %w", p.Name(), err)
		}
	}

	discovery := b.opts.Discovery
	if len(discovery.Include) == 0 && len(discovery.Exclude) == 0 {
		discovery = DefaultDiscoveryConfig()
	}
	if !filepath.IsAbs(env.OutDir) {
		discovery.Exclude = append(discovery.Exclude, filepath.ToSlash(filepath.Clean(env.OutDir))+"/**")
	}
	files, err := DiscoverFiles(env.Root, discovery)
	if err != nil {
		return nil, err
	}
	b.logger.Info("discovered stylesheets", "count", len(files), "root", env.Root)

	cache := b.opts.Files
	if cache == nil {
		cache = util.NewFileCache(&util.FileCacheConfig{MaxFiles: len(files) + 1, Logger: b.logger})
		defer cache.Close()
	}

	bytes, err := b.transformAll(ctx, files, cache)
	if err != nil {
		return nil, err
	}
	b.sess.OrderAggregates(files)

	result := &Result{Files: len(files), Bytes: bytes}

	for _, p := range b.plugins {
		if err := p.WriteBundle(ctx); err != nil {
			return nil, fmt.Errorf("[%s] write bundle: %w", p.Name(), err)
		}
	}

	html, err := b.writeIndexHTML()
	if err != nil {
		return nil, err
	}
	result.HTML = html

	for _, p := range b.plugins {
		if named, ok := p.(interface{ OutputName() string }); ok {
			path := env.OutputPath(named.OutputName())
			if _, err := os.Stat(path); err == nil {
				result.Outputs = append(result.Outputs, path)
			}
		}
		p.CloseBundle()
	}

	result.Duration = time.Since(start)
	b.logger.Info("build complete",
		"files", result.Files,
		"read", humanize.Bytes(uint64(result.Bytes)),
		"outputs", len(result.Outputs),
		"duration", result.Duration)
	return result, nil
}

func (b *Builder) transformAll(ctx context.Context, files []string, cache util.FileCache) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}

	pool := NewWorkerPool(ctx, b.opts.Workers, cache, func(ctx context.Context, path, content string) error {
		_, err := Transform(ctx, b.plugins, path, content)
		return err
	}, b.logger)
	pool.Start()
	defer pool.Stop()

	go func() {
		for i, path := range files {
			if err := pool.Submit(FileJob{Path: path, JobID: i}); err != nil {
				return
			}
		}
		pool.FinishSubmitting()
	}()

	var (
		total int64
		errs  []error
	)
	for i := 0; i < len(files); i++ {
		select {
		case res := <-pool.Results():
			total += int64(res.Size)
		case ferr := <-pool.Errors():
			b.logger.Error("transform failed", "file", ferr.Path, "error", ferr.Err)
			errs = append(errs, ferr)
		case <-ctx.Done():
			return total, ctx.Err()
		}
	}
	return total, errors.Join(errs...)
}

// writeIndexHTML runs the project's index.html, when present, through
// every plugin and writes it to the output directory.
func (b *Builder) writeIndexHTML() (string, error) {
	env := b.sess.Env()
	src := filepath.Join(env.Root, "index.html")
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read index.html: %w", err)
	}

	html := string(data)
	for _, p := range b.plugins {
		html = p.TransformIndexHTML(html)
	}

	dst := filepath.Join(env.OutputDir(), "index.html")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(dst, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("failed to write index.html: %w", err)
	}
	return dst, nil
}
