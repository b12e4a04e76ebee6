package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/gnana997/dyntheme/pkg/aggregate"
	"github.com/gnana997/dyntheme/pkg/minify"
	"github.com/gnana997/dyntheme/pkg/session"
)

// Finalize writes the aggregated stylesheet to env.OutputPath(name),
// minified first when env.Minify is set and a minifier is given. It
// returns the written path.
func Finalize(ctx context.Context, env session.Env, logger *slog.Logger, agg *aggregate.Aggregator, name string, minifier minify.Minifier) (string, error) {
	css := agg.Finalize()

	if env.Minify && minifier != nil {
		res, err := minifier.Minify(ctx, css)
		if err != nil {
			logger.Error("error when minifying css", "file", name, "error", err)
			return "", err
		}
		if len(res.Warnings) > 0 {
			logger.Warn("warnings when minifying css", "file", name, "warnings", res.Warnings)
		}
		css = res.CSS
	}

	path := env.OutputPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create assets directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(css), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	logger.Debug("wrote theme stylesheet",
		"path", path,
		"modules", agg.Len(),
		"size", humanize.Bytes(uint64(len(css))))
	return path, nil
}

// Report prints the verbose completion line for a written stylesheet. A
// missing file prints a failure marker instead.
func Report(w io.Writer, env session.Env, name string) {
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)
	magenta := color.New(color.FgMagenta)
	dim := color.New(color.Faint)

	cyan.Fprintln(w, "\n✨ [dyntheme] - extract css code file is successfully:")

	info, err := os.Stat(env.OutputPath(name))
	if err != nil {
		red.Fprintf(w, "\n ❌ [dyntheme] - error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "%s%s\t\t%s\n\n",
		dim.Sprint(env.OutDir+"/"),
		magenta.Sprint(env.AssetsDir+"/"+name),
		dim.Sprint(humanize.Bytes(uint64(info.Size()))))
}
