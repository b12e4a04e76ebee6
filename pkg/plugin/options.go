package plugin

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/dyntheme/pkg/extractor"
)

// InjectTo is where the runtime places the theme stylesheet.
type InjectTo string

const (
	InjectToHead        InjectTo = "head"
	InjectToBody        InjectTo = "body"
	InjectToBodyPrepend InjectTo = "body-prepend"
)

// LoadMethod is how the runtime loads the dark stylesheet.
type LoadMethod string

const (
	LoadMethodLink LoadMethod = "link"
	LoadMethodAjax LoadMethod = "ajax"
)

const (
	defaultColorFileName = "app-theme-style"
	defaultDarkFileName  = "app-antd-dark-theme-style"
)

// DefaultDarkSelector is the attribute selector dark rules are scoped under.
const DefaultDarkSelector = `data-theme="dark"`

// ColorOptions configures ColorTheme.
type ColorOptions struct {
	ColorVariables     []string `yaml:"colorVariables" json:"colorVariables"`
	WrapperCSSSelector string   `yaml:"wrapperCssSelector" json:"wrapperCssSelector"`
	FileName           string   `yaml:"fileName" json:"fileName"`
	InjectTo           InjectTo `yaml:"injectTo" json:"injectTo"`
	Verbose            *bool    `yaml:"verbose" json:"verbose"`

	// ResolveSelector replaces the WrapperCSSSelector prefixing.
	ResolveSelector extractor.SelectorResolver `yaml:"-" json:"-"`

	// ExtractVariables replaces the whole extraction step.
	ExtractVariables extractor.VariableExtractor `yaml:"-" json:"-"`
}

func (o ColorOptions) withDefaults() ColorOptions {
	if o.FileName == "" {
		o.FileName = defaultColorFileName
	}
	if o.InjectTo == "" {
		o.InjectTo = InjectToBody
	}
	if o.Verbose == nil {
		o.Verbose = Bool(true)
	}
	return o
}

// DarkOptions configures DarkTheme.
type DarkOptions struct {
	DarkModifyVars map[string]string `yaml:"darkModifyVars" json:"darkModifyVars,omitempty"`
	FileName       string            `yaml:"fileName" json:"fileName"`
	Verbose        *bool             `yaml:"verbose" json:"verbose"`
	Selector       string            `yaml:"selector" json:"selector"`
	PreloadFiles   []string          `yaml:"preloadFiles" json:"preloadFiles"`
	ExtractCSS     *bool             `yaml:"extractCss" json:"extractCss"`
	LoadMethod     LoadMethod        `yaml:"loadMethod" json:"loadMethod"`

	// FilterGlobs keeps module ids matching a pattern; "!" excludes.
	FilterGlobs []string `yaml:"filter" json:"-"`

	// Filter takes precedence over FilterGlobs.
	Filter Filter `yaml:"-" json:"-"`
}

func (o DarkOptions) withDefaults() (DarkOptions, error) {
	if o.FileName == "" {
		o.FileName = defaultDarkFileName
	}
	if o.Verbose == nil {
		o.Verbose = Bool(true)
	}
	if o.Selector == "" {
		o.Selector = DefaultDarkSelector
	}
	if o.ExtractCSS == nil {
		o.ExtractCSS = Bool(true)
	}
	if o.LoadMethod == "" {
		o.LoadMethod = LoadMethodLink
	}
	if o.Filter == nil && len(o.FilterGlobs) > 0 {
		f, err := GlobFilter(o.FilterGlobs)
		if err != nil {
			return o, err
		}
		o.Filter = f
	}
	return o, nil
}

// Bool returns a pointer to b, for the optional flags.
func Bool(b bool) *bool {
	return &b
}

// Filter decides whether a module id is processed.
type Filter interface {
	Match(id string) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(id string) bool

func (f FilterFunc) Match(id string) bool {
	return f(id)
}

type globFilter struct {
	include []string
	exclude []string
}

// GlobFilter builds a Filter from doublestar patterns. An id passes when it
// matches no "!"-prefixed pattern and, if any plain pattern is given, at
// least one of those.
func GlobFilter(patterns []string) (Filter, error) {
	f := &globFilter{}
	for _, p := range patterns {
		negate := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid filter pattern %q", p)
		}
		if negate {
			f.exclude = append(f.exclude, p)
		} else {
			f.include = append(f.include, p)
		}
	}
	return f, nil
}

func (f *globFilter) Match(id string) bool {
	id = filepath.ToSlash(id)
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, id); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, _ := doublestar.Match(p, id); ok {
			return true
		}
	}
	return false
}
