package main

import (
	"fmt"
	"time"

	"github.com/javajack/xltmpl"
	"github.com/javajack/xltmpl/internal/runconfig"
	"github.com/spf13/cobra"
)

type fillFlags struct {
	config        string
	data          string
	fixed         []string
	recalc        bool
	notationBegin string
	notationEnd   string
}

func newFillCommand(g *globalFlags) *cobra.Command {
	f := &fillFlags{}
	cmd := &cobra.Command{
		Use:   "fill [template] [output]",
		Short: "Fill a template with data and write the result",
		Example: `  xltmpl fill report.xlsx out.xlsx --data data.yaml
  xltmpl fill --config run.hcl`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "HCL run file")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "YAML or JSON data file")
	cmd.Flags().StringSliceVar(&f.fixed, "fixed", nil, "collections whose loops overwrite rows instead of inserting them")
	cmd.Flags().BoolVar(&f.recalc, "recalc", false, "recalculate all formulas when the output is opened")
	cmd.Flags().StringVar(&f.notationBegin, "notation-begin", "", "expression start delimiter (default ${)")
	cmd.Flags().StringVar(&f.notationEnd, "notation-end", "", "expression end delimiter (default })")
	return cmd
}

// resolveRun merges the run file with flags and arguments. Flags and
// arguments win over the run file.
func resolveRun(cmd *cobra.Command, g *globalFlags, f *fillFlags, args []string) (*runconfig.Config, error) {
	cfg := &runconfig.Config{}
	if f.config != "" {
		loaded, err := runconfig.Load(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Template = args[0]
	}
	if len(args) > 1 {
		cfg.Output = args[1]
	}
	if f.data != "" {
		cfg.DataFile = f.data
	}
	if len(f.fixed) > 0 {
		cfg.FixedCollections = append(cfg.FixedCollections, f.fixed...)
	}
	if cmd.Flags().Changed("recalc") {
		cfg.Recalculate = f.recalc
	}
	if f.notationBegin != "" {
		cfg.NotationBegin = f.notationBegin
	}
	if f.notationEnd != "" {
		cfg.NotationEnd = f.notationEnd
	}
	if cfg.LogLevel == "" || cmd.Flags().Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if cfg.LogFormat == "" || cmd.Flags().Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("no template given")
	}
	if cfg.Output == "" {
		return nil, fmt.Errorf("no output given")
	}
	return cfg, nil
}

func runFill(cmd *cobra.Command, g *globalFlags, f *fillFlags, args []string) error {
	cfg, err := resolveRun(cmd, g, f, args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	data, err := cfg.Data()
	if err != nil {
		return err
	}

	opts := []xltmpl.Option{
		xltmpl.WithLogger(logger),
		xltmpl.WithFixedSizeCollections(cfg.FixedCollections...),
		xltmpl.WithRecalculateOnOpen(cfg.Recalculate),
	}
	if cfg.NotationBegin != "" || cfg.NotationEnd != "" {
		opts = append(opts, xltmpl.WithExpressionNotation(cfg.NotationBegin, cfg.NotationEnd))
	}

	start := time.Now()
	if err := xltmpl.Fill(cfg.Template, cfg.Output, data, opts...); err != nil {
		return err
	}
	logger.Info("wrote output", "template", cfg.Template, "output", cfg.Output, "elapsed", time.Since(start))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.Output)
	return nil
}
