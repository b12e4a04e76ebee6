package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/build"
	"github.com/gnana997/dyntheme/pkg/session"
)

type buildOptions struct {
	workers  int
	noMinify bool
	outDir   string
}

func newBuildCmd(a *app) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract theme stylesheets from the project",
		Long: `build transforms every stylesheet under the project root, aggregates the
extracted theme rules and writes one stylesheet per theme to <outDir>/<assetsDir>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Transform workers (default: number of CPUs)")
	cmd.Flags().BoolVar(&opts.noMinify, "no-minify", false, "Write the theme stylesheets unminified")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "Output directory, overriding the config file")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command, opts buildOptions) error {
	cfg, err := a.project()
	if err != nil {
		return err
	}
	if opts.outDir != "" {
		cfg.OutDir = opts.outDir
	}
	if opts.noMinify {
		cfg.Minify = new(bool)
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	set, err := a.newPluginSet(cfg)
	if err != nil {
		return err
	}
	defer set.Close()

	sess := session.New(cfg.sessionEnv(session.CommandBuild), session.WithLogger(a.logger))
	builder := build.New(sess, set.plugins, build.Options{
		Discovery: cfg.discovery(),
		Workers:   cfg.Workers,
	})

	result, err := builder.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ %d stylesheets (%s) in %s\n",
		result.Files, humanize.Bytes(uint64(result.Bytes)), result.Duration.Round(time.Millisecond))
	for _, out := range result.Outputs {
		fmt.Fprintf(a.out, "  %s\n", out)
	}
	if result.HTML != "" {
		fmt.Fprintf(a.out, "  %s\n", result.HTML)
	}
	return nil
}
