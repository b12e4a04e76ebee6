package main

import (
	"errors"
	"fmt"

	"github.com/gnana997/dyntheme/pkg/jsmodule"
	"github.com/gnana997/dyntheme/pkg/less"
	"github.com/gnana997/dyntheme/pkg/minify"
	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/util"
)

var errNoTheme = errors.New("no theme configured: add a color or dark section to the config")

// pluginSet is the plugin chain of one command, in transform order, plus
// the resources it owns.
type pluginSet struct {
	plugins    []plugin.Plugin
	color      *plugin.ColorTheme
	dark       *plugin.DarkTheme
	recognizer *jsmodule.Recognizer
	compiler   *less.NodeCompiler
}

// newPluginSet creates the color and dark plugins the config enables. The
// dark plugin needs a JS runtime with less installed under root.
func (a *app) newPluginSet(cfg *ProjectConfig) (*pluginSet, error) {
	set := &pluginSet{}
	minifier := minify.NewCSS()

	if cfg.Color != nil {
		set.recognizer = jsmodule.NewRecognizer(util.GetOptimalPoolSize(), a.logger)
		set.color = plugin.NewColorTheme(*cfg.Color, set.recognizer, minifier)
		set.color.SetReportOutput(a.out)
		set.plugins = append(set.plugins, set.color)
	}

	if cfg.Dark != nil {
		compiler, err := less.NewNodeCompiler(a.env.Node, cfg.Root, a.logger)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("dark theme: %w", err)
		}
		set.compiler = compiler

		dark, err := plugin.NewDarkTheme(*cfg.Dark, compiler, minifier)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("dark theme: %w", err)
		}
		dark.SetReportOutput(a.out)
		set.dark = dark
		set.plugins = append(set.plugins, dark)
	}

	if len(set.plugins) == 0 {
		return nil, errNoTheme
	}
	set.plugins = plugin.Sort(set.plugins)
	return set, nil
}

// Close releases the parser pool and the compiler's worker script.
func (s *pluginSet) Close() {
	if s.recognizer != nil {
		_ = s.recognizer.Close()
	}
	if s.compiler != nil {
		_ = s.compiler.Close()
	}
}
