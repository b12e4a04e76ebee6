package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/session"
)

type clientOptions struct {
	out string
	dev bool
}

func newClientCmd(a *app) *cobra.Command {
	var opts clientOptions
	cmd := &cobra.Command{
		Use:   "client <source>",
		Short: "Fill the runtime client placeholders for this project",
		Long: `client substitutes the theme output paths, color options and build flags
into a runtime client module and prints it, or writes it to --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.project()
			if err != nil {
				return err
			}
			set, err := a.newPluginSet(cfg)
			if err != nil {
				return err
			}
			defer set.Close()

			command := session.CommandBuild
			if opts.dev {
				command = session.CommandServe
			}
			sess := session.New(cfg.sessionEnv(command), session.WithLogger(a.logger))

			injector := plugin.NewClientInjector(set.color, set.dark)
			for _, p := range append(set.plugins, injector) {
				if err := p.ConfigResolved(cmd.Context(), sess); err != nil {
					return fmt.Errorf("[%s] %w", p.Name(), err)
				}
			}

			source, err := a.readSource(args[0])
			if err != nil {
				return err
			}
			res, err := injector.Transform(cmd.Context(), plugin.ClientModule, source)
			if err != nil {
				return err
			}

			if opts.out == "" {
				_, err = fmt.Fprint(a.out, res.Code)
				return err
			}
			return os.WriteFile(opts.out, []byte(res.Code), 0644)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the module here instead of stdout")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "Fill in dev values instead of production ones")
	return cmd
}
