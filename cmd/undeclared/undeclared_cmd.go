// Package undeclared implements the `undeclared` subcommand: dependencies
// used transitively per the dep-usage report but never declared.
package undeclared

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whisklabs/pants-dependency-sanitizer/config"
	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

// NewCommand returns the `undeclared` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undeclared",
		Short: "Manage undeclared but transitively used module dependencies",
	}
	cmd.AddCommand(newShowCommand(), newFixCommand())
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show all undeclared dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			summary, err := sweep.Run(cmd.Context(), sweep.OpUndeclared, sweep.ModeShow, opts)
			if err != nil {
				return err
			}
			if summary.Issues > 0 {
				return fmt.Errorf("%w: %d undeclared dependencies outstanding", sweep.ErrIssuesFound, summary.Issues)
			}
			return nil
		},
	}
}

func newFixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Add all undeclared dependencies to the corresponding BUILD files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			_, err = sweep.Run(cmd.Context(), sweep.OpUndeclared, sweep.ModeFix, opts)
			return err
		},
	}
}
