package plugin

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/gnana997/dyntheme/pkg/session"
)

const clientPluginName = "dyntheme:inject-client"

// Placeholders the runtime client source carries until ClientInjector
// fills them in.
const (
	PlaceholderColorOutput = "__DYNTHEME_COLOR_OUTPUT__"
	PlaceholderColorOpts   = "__DYNTHEME_COLOR_OPTIONS__"
	PlaceholderDarkOutput  = "__DYNTHEME_DARK_OUTPUT__"
	PlaceholderDarkExtract = "__DYNTHEME_DARK_EXTRACT__"
	PlaceholderDarkLink    = "__DYNTHEME_DARK_LOAD_LINK__"
	PlaceholderProd        = "__DYNTHEME_PROD__"
)

// ClientInjector substitutes build facts into the runtime client module:
// where the theme files are served, the color options, and whether this
// is a production build.
type ClientInjector struct {
	color *ColorTheme
	dark  *DarkTheme
	sess  *session.Session
}

// NewClientInjector creates the injector. Either plugin may be nil.
func NewClientInjector(color *ColorTheme, dark *DarkTheme) *ClientInjector {
	return &ClientInjector{color: color, dark: dark}
}

func (c *ClientInjector) Name() string { return clientPluginName }

func (c *ClientInjector) Enforce() Enforce { return EnforcePre }

func (c *ClientInjector) ConfigResolved(ctx context.Context, sess *session.Session) error {
	c.sess = sess
	return nil
}

// IsClientModule reports whether id is the runtime client, including the
// flattened copies dependency optimizers write.
func IsClientModule(id string) bool {
	nid := filepath.ToSlash(id)
	return nid == ClientModule ||
		strings.HasSuffix(nid, "dyntheme/client.js") ||
		strings.Contains(nid, "dyntheme_client.js")
}

func (c *ClientInjector) Transform(ctx context.Context, id, code string) (*TransformResult, error) {
	if c.sess == nil || !IsClientModule(id) {
		return nil, nil
	}
	env := c.sess.Env()

	colorOutput, colorOpts := "null", "null"
	if c.color != nil && !c.color.Disabled() {
		colorOutput = jsonString(env.PublicPath(c.color.OutputName()))
		colorOpts = marshalOrNull(c.color.Options())
	}

	darkOutput, darkExtract, darkLink := "null", "false", "false"
	if c.dark != nil {
		opts := c.dark.Options()
		darkOutput = jsonString(env.PublicPath(c.dark.OutputName()))
		darkExtract = marshalOrNull(*opts.ExtractCSS)
		darkLink = marshalOrNull(opts.LoadMethod == LoadMethodLink)
	}

	r := strings.NewReplacer(
		PlaceholderColorOutput, colorOutput,
		PlaceholderColorOpts, colorOpts,
		PlaceholderDarkOutput, darkOutput,
		PlaceholderDarkExtract, darkExtract,
		PlaceholderDarkLink, darkLink,
		PlaceholderProd, marshalOrNull(!env.IsDev()),
	)
	return &TransformResult{Code: r.Replace(code), CombineMap: env.Sourcemap}, nil
}

func (c *ClientInjector) TransformIndexHTML(html string) string { return html }

func (c *ClientInjector) WriteBundle(ctx context.Context) error { return nil }

func (c *ClientInjector) CloseBundle() {}

func marshalOrNull(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
