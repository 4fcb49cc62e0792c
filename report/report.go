// Package report loads the external dep-usage report into an immutable
// usage graph keyed by normalized target address.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNotFound indicates the report file does not exist.
var ErrNotFound = errors.New("report file not found")

// ErrMalformed indicates the report file exists but could not be decoded.
var ErrMalformed = errors.New("report file malformed")

// Dependency is one dependency record of a target in the dep-usage report.
type Dependency struct {
	Aliases           []string `json:"aliases"`
	DependencyType    string   `json:"dependency_type"`
	ProductsUsed      int      `json:"products_used"`
	ProductsUsedRatio float64  `json:"products_used_ratio"`
	Target            string   `json:"target"`
}

// TargetInfo is the per-target payload of the dep-usage report.
type TargetInfo struct {
	Cost           int          `json:"cost"`
	CostTransitive int          `json:"cost_transitive"`
	Dependencies   []Dependency `json:"dependencies"`
	ProductsTotal  int          `json:"products_total"`
}

// Usage holds what the report observed for a single target.
type Usage struct {
	// DirectUsed contains targets the code directly compiles against.
	DirectUsed map[string]bool
	// TransitivelyUsed contains targets referenced by the code but only
	// reachable through the dependency chain, never declared one hop away.
	TransitivelyUsed map[string]bool
}

// UsageGraph is the single source of truth for "is this dependency actually
// used". It is built once per run and never mutated afterwards, so it is safe
// to share across workers without locking.
type UsageGraph struct {
	usage map[string]Usage
}

// Load reads and decodes a dep-usage report. The report is produced
// externally, e.g. `./pants -q dep-usage.jvm --no-summary src/:: > deps.json`.
func Load(path string) (*UsageGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	var raw map[string]TargetInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	g := &UsageGraph{usage: make(map[string]Usage, len(raw))}
	for target, info := range raw {
		u := Usage{
			DirectUsed:       make(map[string]bool),
			TransitivelyUsed: make(map[string]bool),
		}
		for _, dep := range info.Dependencies {
			name := Normalize(dep.Target)
			switch dep.DependencyType {
			case "declared":
				u.DirectUsed[name] = true
			case "undeclared":
				u.TransitivelyUsed[name] = true
			case "unused":
				// Declared but not used: absent from both sets.
			}
		}
		g.usage[Normalize(target)] = u
	}
	return g, nil
}

// Lookup returns the usage record for a normalized target name.
func (g *UsageGraph) Lookup(target string) (Usage, bool) {
	u, ok := g.usage[target]
	return u, ok
}

// Targets returns all target names in the report, sorted.
func (g *UsageGraph) Targets() []string {
	names := make([]string, 0, len(g.usage))
	for name := range g.usage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of targets in the report.
func (g *UsageGraph) Len() int {
	return len(g.usage)
}
