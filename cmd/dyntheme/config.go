package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/dyntheme/pkg/build"
	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/session"
)

const defaultConfigFile = "dyntheme.yaml"

// EnvConfig holds the environment overrides.
type EnvConfig struct {
	LogLevel  string `env:"DYNTHEME_LOG_LEVEL, default=info"`
	LogFormat string `env:"DYNTHEME_LOG_FORMAT, default=text"`
	Node      string `env:"DYNTHEME_NODE"`
	Config    string `env:"DYNTHEME_CONFIG, default=dyntheme.yaml"`
}

func loadEnv(ctx context.Context, lookup envconfig.Lookuper) (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup,
	}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProjectConfig holds the contents of dyntheme.yaml.
type ProjectConfig struct {
	Root      string   `yaml:"root"`
	OutDir    string   `yaml:"outDir"`
	AssetsDir string   `yaml:"assetsDir"`
	Base      string   `yaml:"base"`
	Minify    *bool    `yaml:"minify"`
	Workers   int      `yaml:"workers"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`

	Color *plugin.ColorOptions `yaml:"color"`
	Dark  *plugin.DarkOptions  `yaml:"dark"`
}

// loadProjectConfig reads the config at path. A missing file is only an
// error when required; otherwise an empty config rooted at the working
// directory is returned. A relative root is resolved against the config
// file's directory.
func loadProjectConfig(path string, required bool) (*ProjectConfig, error) {
	cfg := &ProjectConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
		cfg.Root = "."
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return cfg, nil
}

// sessionEnv converts the config to a session environment.
func (c *ProjectConfig) sessionEnv(command session.Command) session.Env {
	env := session.Env{
		Command:   command,
		Root:      c.Root,
		OutDir:    c.OutDir,
		AssetsDir: c.AssetsDir,
		Base:      c.Base,
		Minify:    true,
	}
	if c.Minify != nil {
		env.Minify = *c.Minify
	}
	return env.WithDefaults()
}

// discovery merges the configured globs over the defaults.
func (c *ProjectConfig) discovery() build.DiscoveryConfig {
	cfg := build.DefaultDiscoveryConfig()
	if len(c.Include) > 0 {
		cfg.Include = c.Include
	}
	cfg.Exclude = append(cfg.Exclude, c.Exclude...)
	return cfg
}

// project loads the config for the current command, applying --root. The
// default config file is looked up in --root when one is given.
func (a *app) project() (*ProjectConfig, error) {
	path := a.configPath
	required := path != defaultConfigFile
	if !required && a.root != "" {
		path = filepath.Join(a.root, defaultConfigFile)
	}
	cfg, err := loadProjectConfig(path, required)
	if err != nil {
		return nil, err
	}
	if a.root != "" {
		cfg.Root = a.root
	}
	return cfg, nil
}
