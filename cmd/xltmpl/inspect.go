package main

import (
	"fmt"

	"github.com/javajack/xltmpl"
	"github.com/spf13/cobra"
)

func newValidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <template>",
		Short: "Check a template for tag and expression errors without data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			issues, err := xltmpl.Validate(args[0], xltmpl.WithLogger(logger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, is := range issues {
				fmt.Fprintln(out, is)
			}
			if xltmpl.HasErrors(issues) {
				return &exitError{code: 2, msg: fmt.Sprintf("%s: template has errors", args[0])}
			}
			if len(issues) == 0 {
				fmt.Fprintf(out, "%s: OK\n", args[0])
			}
			return nil
		},
	}
}

func newDescribeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <template>",
		Short: "Print the tag tree and expressions of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			desc, err := xltmpl.Describe(args[0], xltmpl.WithLogger(logger))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}
