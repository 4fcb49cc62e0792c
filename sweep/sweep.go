// Package sweep walks the project tree and dispatches per-file analysis and
// rewriting against the shared usage graph.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/whisklabs/pants-dependency-sanitizer/analyze"
	"github.com/whisklabs/pants-dependency-sanitizer/buildfile"
	"github.com/whisklabs/pants-dependency-sanitizer/report"
)

// Op selects the analysis performed on each file.
type Op int

const (
	OpUnused Op = iota
	OpUndeclared
	OpSort
)

// Mode selects between reporting findings and rewriting files.
type Mode int

const (
	ModeShow Mode = iota
	ModeFix
)

// ErrIssuesFound reports that a show run surfaced outstanding findings; the
// CLI maps it to a non-zero exit so CI can gate on it.
var ErrIssuesFound = errors.New("issues found")

// DefaultSkipMarker is the comment substring that protects an entry from
// sanitizing.
const DefaultSkipMarker = "skip-sanitize"

// DefaultReportFile is where the pants dep-usage report is expected.
const DefaultReportFile = "deps.json"

// DefaultBuildFileName is the build file name looked for during discovery.
const DefaultBuildFileName = "BUILD"

// Directories never descended into during discovery.
var skippedDirs = map[string]bool{
	".git":         true,
	".idea":        true,
	".vscode":      true,
	".pants.d":     true,
	"node_modules": true,
	"dist":         true,
}

// Options configure a run.
type Options struct {
	// Root is the project root holding the monorepo tree.
	Root string
	// Prefix restricts the sweep to build files under this path, relative to
	// Root.
	Prefix string
	// ReportFile is the dep-usage report path.
	ReportFile string
	// SkipMarker is the override comment substring.
	SkipMarker string
	// BuildFileName is the file name recognized as a build file.
	BuildFileName string
	// Workers bounds the per-file worker pool.
	Workers int
	// Excludes skips any build file whose relative path contains one of
	// these substrings.
	Excludes []string
	// Out receives findings; warnings go through Log instead so automated
	// consumers can tell "no issues" from "some files were skipped".
	Out io.Writer
	// Log receives per-file warnings and progress.
	Log *logrus.Logger
}

func (o *Options) fill() {
	if o.Root == "" {
		o.Root = "."
	}
	if o.ReportFile == "" {
		o.ReportFile = DefaultReportFile
	}
	if o.SkipMarker == "" {
		o.SkipMarker = DefaultSkipMarker
	}
	if o.BuildFileName == "" {
		o.BuildFileName = DefaultBuildFileName
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Excludes == nil {
		o.Excludes = []string{"3rdparty"}
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
}

// Summary aggregates run-level counts for the exit-status contract.
type Summary struct {
	// FilesScanned counts build files successfully parsed.
	FilesScanned int
	// FilesSkipped counts build files skipped over parse errors.
	FilesSkipped int
	// FilesChanged counts files rewritten on disk.
	FilesChanged int
	// ModulesAffected counts targets with at least one finding.
	ModulesAffected int
	// Issues counts findings in show mode and applied edits in fix mode.
	Issues int
}

// outcome is the per-file result collected from the worker pool.
type outcome struct {
	path    string
	lines   []string
	modules int
	issues  int
	changed bool
}

// Run loads the usage report (unless sorting), discovers build files and
// processes them with a bounded worker pool. Findings are printed to
// opts.Out sorted by file path so output is deterministic regardless of
// scheduling.
func Run(ctx context.Context, op Op, mode Mode, opts Options) (*Summary, error) {
	opts.fill()

	var graph *report.UsageGraph
	if op != OpSort {
		g, err := report.Load(opts.ReportFile)
		if err != nil {
			return nil, err
		}
		graph = g
	}

	paths, err := discover(opts)
	if err != nil {
		return nil, fmt.Errorf("discovering build files: %w", err)
	}

	summary := &Summary{}
	files := parseAll(ctx, paths, opts, summary)

	analyzer := &analyze.Analyzer{Graph: graph}
	if op == OpUndeclared {
		// Exports closures cross file boundaries, so every file's exports
		// edges must be indexed before any file is diagnosed.
		index := analyze.NewExportIndex()
		for _, f := range files {
			if err := index.AddFile(f); err != nil {
				return nil, fmt.Errorf("indexing exports: %w", err)
			}
		}
		analyzer.Exports = index
	}

	outcomes, err := processAll(ctx, op, mode, files, analyzer, opts)
	if err != nil {
		return nil, err
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].path < outcomes[j].path })
	for _, oc := range outcomes {
		for _, line := range oc.lines {
			fmt.Fprintln(opts.Out, line)
		}
		summary.ModulesAffected += oc.modules
		summary.Issues += oc.issues
		if oc.changed {
			summary.FilesChanged++
		}
	}
	printSummary(opts.Out, op, mode, summary)
	return summary, nil
}

// discover collects build-file paths under the prefix, honoring the exclude
// list.
func discover(opts Options) ([]string, error) {
	root := filepath.Join(opts.Root, filepath.FromSlash(opts.Prefix))
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != opts.BuildFileName {
			return nil
		}
		rel := relSlash(opts.Root, path)
		for _, ex := range opts.Excludes {
			if strings.Contains(rel, ex) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// parseAll parses every discovered file with a bounded pool. Parse failures
// are warnings: the file is dropped and the sweep continues.
func parseAll(ctx context.Context, paths []string, opts Options, summary *Summary) []*buildfile.File {
	parser := buildfile.Parser{SkipMarker: opts.SkipMarker}
	slots := make([]*buildfile.File, len(paths))

	var mu sync.Mutex
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				opts.Log.WithField("file", path).Warnf("skipping unreadable build file: %v", err)
				return nil
			}
			f, err := parser.Parse(path, src)
			if err != nil {
				opts.Log.WithField("file", path).Warnf("skipping unparsable build file: %v", err)
				return nil
			}
			f.Dir = relSlash(opts.Root, filepath.Dir(path))
			mu.Lock()
			slots[i] = f
			mu.Unlock()
			return nil
		})
	}
	// Workers only ever return nil; errgroup is used for its bounded Wait.
	_ = eg.Wait()

	files := make([]*buildfile.File, 0, len(slots))
	for _, f := range slots {
		if f != nil {
			files = append(files, f)
		}
	}
	summary.FilesScanned = len(files)
	summary.FilesSkipped = len(paths) - len(files)
	return files
}

// processAll runs the per-file diagnosis and, in fix mode, persists rewrites.
func processAll(ctx context.Context, op Op, mode Mode, files []*buildfile.File, analyzer *analyze.Analyzer, opts Options) ([]outcome, error) {
	slots := make([]*outcome, len(files))

	var mu sync.Mutex
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			oc, err := processFile(op, mode, f, analyzer)
			if err != nil {
				return err
			}
			mu.Lock()
			slots[i] = oc
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var outcomes []outcome
	for _, oc := range slots {
		if oc != nil && (len(oc.lines) > 0 || oc.changed || oc.issues > 0) {
			outcomes = append(outcomes, *oc)
		}
	}
	return outcomes, nil
}

func processFile(op Op, mode Mode, f *buildfile.File, analyzer *analyze.Analyzer) (*outcome, error) {
	oc := &outcome{path: f.Path}
	switch op {
	case OpSort:
		for _, b := range f.Blocks {
			b.Normalize(func(literal string) string {
				return report.NormalizeEntry(literal, f.Dir)
			})
		}
		changed, err := persist(f)
		if err != nil {
			return nil, err
		}
		if changed {
			oc.changed = true
			oc.issues = 1
			oc.lines = append(oc.lines, fmt.Sprintf("sorted %s", f.Path))
		}

	case OpUnused:
		findings := analyzer.FindUnused(f)
		if len(findings) == 0 {
			break
		}
		if mode == ModeShow {
			byOwner := map[string]int{}
			for _, u := range findings {
				byOwner[u.Owner.String()]++
				oc.lines = append(oc.lines, fmt.Sprintf("%s: unused %s", u.Owner, u.Name))
			}
			oc.modules = len(byOwner)
			oc.issues = len(findings)
			break
		}
		removed := map[string]int{}
		victims := map[*buildfile.Block]map[*buildfile.Entry]bool{}
		for _, u := range findings {
			if victims[u.Block] == nil {
				victims[u.Block] = map[*buildfile.Entry]bool{}
			}
			victims[u.Block][u.Entry] = true
			removed[u.Owner.String()]++
		}
		for block, set := range victims {
			block.RemoveEntries(set)
		}
		changed, err := persist(f)
		if err != nil {
			return nil, err
		}
		oc.changed = changed
		oc.modules = len(removed)
		owners := sortedKeys(removed)
		for _, owner := range owners {
			oc.issues += removed[owner]
			oc.lines = append(oc.lines, fmt.Sprintf("%s removed: %d", owner, removed[owner]))
		}

	case OpUndeclared:
		findings := analyzer.FindUndeclared(f)
		if len(findings) == 0 {
			break
		}
		for _, u := range findings {
			if mode == ModeShow {
				oc.modules++
				oc.issues += len(u.Names)
				for _, name := range u.Names {
					oc.lines = append(oc.lines, fmt.Sprintf("%s: undeclared %s", u.Owner, name))
				}
				continue
			}
			if u.Block == nil {
				// Nothing to splice into; surfaced by show, left alone here.
				continue
			}
			u.Block.InsertLiterals(u.Names)
			oc.modules++
			oc.issues += len(u.Names)
			oc.lines = append(oc.lines, fmt.Sprintf("%s added: %d", u.Owner, len(u.Names)))
		}
		if mode == ModeFix {
			changed, err := persist(f)
			if err != nil {
				return nil, err
			}
			oc.changed = changed
		}
	}
	return oc, nil
}

// persist writes the rendered model back only when bytes actually changed,
// using a temp file and atomic rename so no partial write is ever visible.
func persist(f *buildfile.File) (bool, error) {
	out := f.Render()
	if string(out) == string(f.Source()) {
		return false, nil
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", f.Path, err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("replacing %s: %w", f.Path, err)
	}
	return true, nil
}

func printSummary(out io.Writer, op Op, mode Mode, s *Summary) {
	switch op {
	case OpSort:
		fmt.Fprintf(out, "files sorted: %d\n", s.FilesChanged)
	case OpUnused:
		if mode == ModeShow {
			fmt.Fprintf(out, "modules affected: %d, total dependencies unused: %d\n", s.ModulesAffected, s.Issues)
		} else {
			fmt.Fprintf(out, "modules affected: %d, total dependencies removed: %d\n", s.ModulesAffected, s.Issues)
		}
	case OpUndeclared:
		if mode == ModeShow {
			fmt.Fprintf(out, "modules affected: %d, total dependencies undeclared: %d\n", s.ModulesAffected, s.Issues)
		} else {
			fmt.Fprintf(out, "modules affected: %d, total dependencies added: %d\n", s.ModulesAffected, s.Issues)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
