package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/whisklabs/pants-dependency-sanitizer/cmd/sortcmd"
	"github.com/whisklabs/pants-dependency-sanitizer/cmd/undeclared"
	"github.com/whisklabs/pants-dependency-sanitizer/cmd/unused"
	"github.com/whisklabs/pants-dependency-sanitizer/cmd/watch"
	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

// version is set via build-time ldflags
var version = "dev"

// buildDate is set via build-time ldflags
var buildDate = "unknown"

// commit is set via build-time ldflags
var commit = "unknown"

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pants-sanitizer",
	Short: "Audit and repair Pants BUILD dependency declarations",
	Long: `pants-sanitizer audits and repairs dependency declarations in Pants
BUILD files, driven by a dep-usage report. Generate the report first:

  ./pants -q dep-usage.jvm --no-summary src/:: > deps.json

Then point the tool at it to find declared-but-unused dependencies,
used-but-undeclared dependencies, or to normalize dependency list
formatting.

Use 'pants-sanitizer <command> --help' for detailed information about a
specific command.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetOutput(os.Stderr)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Register subcommands
	rootCmd.AddCommand(unused.NewCommand())
	rootCmd.AddCommand(undeclared.NewCommand())
	rootCmd.AddCommand(sortcmd.NewCommand())
	rootCmd.AddCommand(watch.NewCommand())

	// Initialize annotations for version template
	if rootCmd.Annotations == nil {
		rootCmd.Annotations = make(map[string]string)
	}
	rootCmd.Annotations["buildDate"] = buildDate
	rootCmd.Annotations["commit"] = commit
	rootCmd.Version = version

	// Customize version template to show additional build info
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
Build date: {{printf "%s" (index .Annotations "buildDate")}}
Commit: {{printf "%s" (index .Annotations "commit")}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringP("report-file", "r", sweep.DefaultReportFile,
		"Path to the Pants dep-usage report in JSON format")
	flags.StringP("prefix", "p", "",
		"Only process build files under this path prefix")
	flags.String("root", ".", "Project root to scan")
	flags.String("skip-marker", sweep.DefaultSkipMarker,
		"Comment substring that protects an entry from sanitizing")
	flags.String("build-file-name", sweep.DefaultBuildFileName,
		"Build file name to look for")
	flags.IntP("workers", "j", 0,
		"Number of parallel workers (default: number of CPUs)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
