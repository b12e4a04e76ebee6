package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/util"
)

const version = "0.1.0"

// app holds the state shared by every command.
type app struct {
	configPath string
	root       string
	verbose    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	lookup envconfig.Lookuper

	env    *EnvConfig
	logger *slog.Logger
}

func newApp() *app {
	return &app{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		lookup: envconfig.OsLookuper(),
	}
}

func main() {
	if err := newRootCmd(newApp()).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dyntheme",
		Short: "Extract color theme rules from stylesheets",
		Long: `dyntheme pulls the rules that use a set of color tokens out of a project's
stylesheets into a separate theme stylesheet that can be swapped at runtime.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Project config file (default dyntheme.yaml, or $DYNTHEME_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&a.root, "root", "r", "", "Project root, overriding the config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newExtractCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newClientCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// setup loads the environment overrides and configures logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(cmd.Context(), a.lookup)
	if err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	a.env = env
	if a.configPath == "" {
		a.configPath = env.Config
	}

	level := util.LogLevel(strings.ToLower(env.LogLevel))
	if a.verbose {
		level = util.LevelDebug
	}
	a.logger = util.NewLogger(util.LoggerConfig{
		Level:  level,
		Format: util.LogFormat(env.LogFormat),
		Output: a.errOut,
	})
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "dyntheme version %s\n", version)
		},
	}
}
