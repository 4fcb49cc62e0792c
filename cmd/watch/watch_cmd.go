// Package watch implements the `watch` subcommand: re-run a read-only audit
// whenever a BUILD file changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/whisklabs/pants-dependency-sanitizer/config"
	"github.com/whisklabs/pants-dependency-sanitizer/sweep"
)

const debounceInterval = 300 * time.Millisecond

var skippedDirs = map[string]bool{
	".git":         true,
	".idea":        true,
	".vscode":      true,
	".pants.d":     true,
	"node_modules": true,
	"dist":         true,
}

// NewCommand returns the `watch` command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch BUILD files and re-run the unused/undeclared audit on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			opts.Out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchAndAudit(ctx, opts)
		},
	}
}

func watchAndAudit(ctx context.Context, opts sweep.Options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	root := filepath.Join(opts.Root, filepath.FromSlash(opts.Prefix))
	if err := addWatchDirs(watcher, root); err != nil {
		return fmt.Errorf("failed to watch directories: %w", err)
	}

	audit(ctx, opts)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				addIfDirectory(watcher, event.Name)
			}
			if filepath.Base(event.Name) != buildFileName(opts) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceInterval, func() {
				audit(ctx, opts)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Warnf("watcher error: %v", err)
		}
	}
}

// audit runs both read-only diagnoses; findings go to opts.Out, failures are
// logged and the watch keeps running.
func audit(ctx context.Context, opts sweep.Options) {
	if ctx.Err() != nil {
		return
	}
	if _, err := sweep.Run(ctx, sweep.OpUnused, sweep.ModeShow, opts); err != nil {
		logrus.Warnf("unused audit failed: %v", err)
		return
	}
	if _, err := sweep.Run(ctx, sweep.OpUndeclared, sweep.ModeShow, opts); err != nil {
		logrus.Warnf("undeclared audit failed: %v", err)
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func addIfDirectory(watcher *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skippedDirs[filepath.Base(path)] {
		return
	}
	_ = watcher.Add(path)
}

func buildFileName(opts sweep.Options) string {
	if opts.BuildFileName != "" {
		return opts.BuildFileName
	}
	return sweep.DefaultBuildFileName
}
