// Package config merges defaults, the optional project config file and CLI
// flags into run options. Precedence: explicit flags > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

// FileName is the optional per-project config file looked up at the root.
const FileName = ".pants-sanitizer.yml"

// File mirrors the YAML config file shape.
type File struct {
	ReportFile    string   `yaml:"report_file"`
	Prefix        string   `yaml:"prefix"`
	SkipMarker    string   `yaml:"skip_marker"`
	BuildFileName string   `yaml:"build_file"`
	Workers       int      `yaml:"workers"`
	Excludes      []string `yaml:"excludes"`
}

// LoadFile reads the config file under root. A missing file is not an error;
// it yields the zero value.
func LoadFile(root string) (File, error) {
	var f File
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, fmt.Errorf("reading %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return f, nil
}

// Resolve builds sweep options from the command's (persistent) flags layered
// over the project config file.
func Resolve(cmd *cobra.Command) (sweep.Options, error) {
	flags := cmd.Flags()

	root, err := flags.GetString("root")
	if err != nil {
		return sweep.Options{}, err
	}
	if root == "" {
		root = "."
	}

	file, err := LoadFile(root)
	if err != nil {
		return sweep.Options{}, err
	}

	opts := sweep.Options{
		Root:          root,
		Prefix:        file.Prefix,
		ReportFile:    file.ReportFile,
		SkipMarker:    file.SkipMarker,
		BuildFileName: file.BuildFileName,
		Workers:       file.Workers,
		Excludes:      file.Excludes,
	}

	if flags.Changed("report-file") || opts.ReportFile == "" {
		opts.ReportFile, _ = flags.GetString("report-file")
	}
	if flags.Changed("prefix") {
		opts.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("skip-marker") || opts.SkipMarker == "" {
		opts.SkipMarker, _ = flags.GetString("skip-marker")
	}
	if flags.Changed("build-file-name") || opts.BuildFileName == "" {
		opts.BuildFileName, _ = flags.GetString("build-file-name")
	}
	if flags.Changed("workers") {
		opts.Workers, _ = flags.GetInt("workers")
	}
	return opts, nil
}
