package analyze

import (
	"errors"

	graphlib "github.com/dominikbraun/graph"

	"github.com/whisklabs/pants-dependency-sanitizer/buildfile"
	"github.com/whisklabs/pants-dependency-sanitizer/report"
)

// ExportIndex holds the exports edges collected from every discovered BUILD
// file. Exporting is transitive: if A exports B and B exports C, A exposes C
// to its consumers, so using C through A is not hidden coupling.
type ExportIndex struct {
	g graphlib.Graph[string, string]
}

// NewExportIndex returns an empty index.
func NewExportIndex() *ExportIndex {
	return &ExportIndex{g: graphlib.New(graphlib.StringHash, graphlib.Directed())}
}

// AddFile records the exports edges declared by one file.
func (x *ExportIndex) AddFile(f *buildfile.File) error {
	for _, b := range f.ExportBlocks() {
		owner := ownerTarget(f.Dir, b.Label).String()
		if err := x.addVertex(owner); err != nil {
			return err
		}
		for _, e := range b.Entries() {
			name := report.NormalizeEntry(e.Literal, f.Dir)
			if err := x.addVertex(name); err != nil {
				return err
			}
			if err := x.g.AddEdge(owner, name); err != nil && !errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
				return err
			}
		}
	}
	return nil
}

// Closure returns every target reachable from the given one through exports
// edges, excluding the target itself.
func (x *ExportIndex) Closure(target string) map[string]bool {
	reachable := make(map[string]bool)
	_ = graphlib.DFS(x.g, target, func(name string) bool {
		if name != target {
			reachable[name] = true
		}
		return false
	})
	return reachable
}

func (x *ExportIndex) addVertex(name string) error {
	if err := x.g.AddVertex(name); err != nil && !errors.Is(err, graphlib.ErrVertexAlreadyExists) {
		return err
	}
	return nil
}
