package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnana997/dyntheme/pkg/extractor"
	"github.com/gnana997/dyntheme/pkg/jsmodule"
)

type extractOptions struct {
	tokens  []string
	wrapper string
	pretty  bool
}

func newExtractCmd(a *app) *cobra.Command {
	var opts extractOptions
	cmd := &cobra.Command{
		Use:   "extract [file...]",
		Short: "Print the theme rules of stylesheets",
		Long: `extract prints the rules of each file whose declarations use one of the color
tokens. Tokens and wrapper default to the color section of the config. Reads
stdin when no file (or "-") is given. JS modules embedding a stylesheet are
decoded first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(opts, args)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.tokens, "tokens", "t", nil, "Color tokens (comma separated)")
	cmd.Flags().StringVar(&opts.wrapper, "wrapper", "", "Selector prefixed to every extracted selector")
	cmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "Pretty-print the output")
	return cmd
}

func (a *app) runExtract(opts extractOptions, files []string) error {
	cfg, err := a.project()
	if err != nil {
		return err
	}
	if cfg.Color != nil {
		if len(opts.tokens) == 0 {
			opts.tokens = cfg.Color.ColorVariables
		}
		if opts.wrapper == "" {
			opts.wrapper = cfg.Color.WrapperCSSSelector
		}
	}
	if len(opts.tokens) == 0 {
		return errors.New("no color tokens: pass --tokens or set color.colorVariables")
	}

	var exOpts []extractor.Option
	if opts.wrapper != "" {
		exOpts = append(exOpts, extractor.WithSelectorResolver(extractor.WrapperResolver(opts.wrapper)))
	}
	ex := extractor.New(opts.tokens, exOpts...)

	recognizer := jsmodule.NewRecognizer(1, a.logger)
	defer recognizer.Close()

	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, file := range files {
		source, err := a.readSource(file)
		if err != nil {
			return err
		}
		css, err := recognizer.StyleString(source)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		out := ex.ExtractVariables(css)
		a.logger.Debug("extracted", "file", file, "bytes", len(out))
		if out == "" {
			continue
		}
		if opts.pretty {
			out = extractor.FormatCSS(out)
		}
		fmt.Fprintln(a.out, out)
	}
	return nil
}

func (a *app) readSource(file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}
