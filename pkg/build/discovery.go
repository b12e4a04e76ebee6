package build

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoveryConfig selects the stylesheets a build transforms.
type DiscoveryConfig struct {
	// Include glob patterns, relative to the project root.
	Include []string
	// Exclude glob patterns. Matching directories are not descended.
	Exclude []string
}

// DefaultDiscoveryConfig returns the stylesheet extensions the plugins
// handle, skipping dependencies, VCS data and build output.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		Include: []string{
			"**/*.{css,less,sass,scss,styl,stylus,postcss}",
		},
		Exclude: []string{
			"node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			"coverage/**",
		},
	}
}

// DiscoverFiles walks rootDir applying include/exclude globs from cfg.
// Returns a sorted slice of absolute file paths for deterministic output.
func DiscoverFiles(rootDir string, cfg DiscoveryConfig) ([]string, error) {
	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range cfg.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	var files []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if Excluded(relPath, cfg.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if len(cfg.Include) > 0 && !matchAny(relPath, cfg.Include) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Excluded reports whether the slash-separated relative path matches one
// of patterns.
func Excluded(relPath string, patterns []string) bool {
	return matchAny(relPath, patterns)
}

// Included reports whether relPath passes cfg.
func (cfg DiscoveryConfig) Included(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if Excluded(relPath, cfg.Exclude) {
		return false
	}
	return len(cfg.Include) == 0 || matchAny(relPath, cfg.Include)
}

func matchAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.Match(pattern, relPath); m {
			return true
		}
	}
	return false
}
