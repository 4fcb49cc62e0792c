// Package sortcmd implements the `sort` subcommand: normalize dependency
// list formatting without consulting the usage report.
package sortcmd

import (
	"github.com/spf13/cobra"

	"github.com/whisklabs/pants-dependency-sanitizer/config"
	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

// NewCommand returns the `sort` command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sort",
		Short: "Sort and normalize dependency lists in BUILD files",
		Long: `Sort reorders every dependencies and exports list lexicographically,
rewrites string delimiters to single quotes and ensures a trailing comma
after the last entry. Comments stay attached to their entries. Files that
are already normalized are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()
			_, err = sweep.Run(cmd.Context(), sweep.OpSort, sweep.ModeFix, opts)
			return err
		},
	}
}
