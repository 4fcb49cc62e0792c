// Package analyze cross-references parsed BUILD files against the usage
// graph to diagnose dead declarations and hidden transitive coupling.
package analyze

import (
	"path"
	"sort"

	"github.com/whisklabs/pants-dependency-sanitizer/buildfile"
	"github.com/whisklabs/pants-dependency-sanitizer/report"
)

// Analyzer diagnoses one file at a time against the shared, read-only usage
// graph. Exports may be nil when exports-aware suppression is not needed.
type Analyzer struct {
	Graph   *report.UsageGraph
	Exports *ExportIndex
}

// Unused is one dead declaration: listed in a dependencies block but absent
// from the owner's direct-use set.
type Unused struct {
	Owner report.Target
	Block *buildfile.Block
	Entry *buildfile.Entry
	// Name is the normalized address of the entry.
	Name string
}

// FindUnused returns the dead declarations of every target in the file,
// sorted by owner then name. Exports blocks are exempt (an export is a public
// re-statement, not a private import) and skip-marked entries are excluded by
// design rather than reported.
func (a *Analyzer) FindUnused(f *buildfile.File) []Unused {
	var findings []Unused
	for _, b := range f.DependencyBlocks() {
		owner := ownerTarget(f.Dir, b.Label)
		usage, ok := a.Graph.Lookup(owner.String())
		if !ok {
			// The report aged relative to the tree; nothing to diagnose.
			continue
		}
		for _, e := range b.Entries() {
			if e.Skip {
				continue
			}
			name := report.NormalizeEntry(e.Literal, f.Dir)
			if !usage.DirectUsed[name] {
				findings = append(findings, Unused{Owner: owner, Block: b, Entry: e, Name: name})
			}
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Owner != findings[j].Owner {
			return findings[i].Owner.String() < findings[j].Owner.String()
		}
		return findings[i].Name < findings[j].Name
	})
	return findings
}

// Undeclared is the hidden coupling of one target: modules its code uses
// through the dependency chain without declaring them one hop away.
type Undeclared struct {
	Owner report.Target
	// Block is the dependencies block receiving the insertions, nil when the
	// target declares no dependencies list.
	Block *buildfile.Block
	// Names holds the normalized insert candidates in lexicographic order.
	Names []string
}

// FindUndeclared returns, per target declared in the file, the transitively
// used modules that are neither declared nor covered by the target's
// transitive exports closure.
func (a *Analyzer) FindUndeclared(f *buildfile.File) []Undeclared {
	type targetDecl struct {
		block    *buildfile.Block
		declared map[string]bool
	}
	decls := make(map[report.Target]*targetDecl)
	var order []report.Target

	track := func(owner report.Target) *targetDecl {
		d, ok := decls[owner]
		if !ok {
			d = &targetDecl{declared: make(map[string]bool)}
			decls[owner] = d
			order = append(order, owner)
		}
		return d
	}

	for _, b := range f.Blocks {
		owner := ownerTarget(f.Dir, b.Label)
		d := track(owner)
		if b.Keyword != buildfile.KeywordDependencies {
			continue
		}
		if d.block == nil {
			d.block = b
		}
		for _, e := range b.Entries() {
			d.declared[report.NormalizeEntry(e.Literal, f.Dir)] = true
		}
	}

	var findings []Undeclared
	for _, owner := range order {
		usage, ok := a.Graph.Lookup(owner.String())
		if !ok {
			continue
		}
		var exposed map[string]bool
		if a.Exports != nil {
			exposed = a.Exports.Closure(owner.String())
		}
		d := decls[owner]
		var names []string
		for name := range usage.TransitivelyUsed {
			if !d.declared[name] && !exposed[name] {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			continue
		}
		sort.Strings(names)
		findings = append(findings, Undeclared{Owner: owner, Block: d.block, Names: names})
	}
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Owner.String() < findings[j].Owner.String()
	})
	return findings
}

// ownerTarget forms the target a block belongs to: the file's directory plus
// the block's label, defaulting to the directory's own name.
func ownerTarget(dir, label string) report.Target {
	if label == "" {
		return report.Target{Dir: dir, Name: path.Base(dir)}
	}
	return report.Target{Dir: dir, Name: label}
}
