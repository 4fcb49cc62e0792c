// Package unused implements the `unused` subcommand: dependencies that are
// declared in a BUILD file but never actually used per the dep-usage report.
package unused

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whisklabs/pants-dependency-sanitizer/config"
	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

// NewCommand returns the `unused` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unused",
		Short: "Manage declared but unused module dependencies",
	}
	cmd.AddCommand(newShowCommand(), newFixCommand())
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show all unused dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			summary, err := sweep.Run(cmd.Context(), sweep.OpUnused, sweep.ModeShow, opts)
			if err != nil {
				return err
			}
			if summary.Issues > 0 {
				return fmt.Errorf("%w: %d unused dependencies outstanding", sweep.ErrIssuesFound, summary.Issues)
			}
			return nil
		},
	}
}

func newFixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Remove all unused dependencies from BUILD files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			_, err = sweep.Run(cmd.Context(), sweep.OpUnused, sweep.ModeFix, opts)
			return err
		},
	}
}
