package analyze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisklabs/pants-dependency-sanitizer/buildfile"
	"github.com/whisklabs/pants-dependency-sanitizer/report"
)

func parseFile(t *testing.T, dir, src string) *buildfile.File {
	t.Helper()
	f, err := buildfile.Parser{SkipMarker: "skip-sanitize"}.Parse(dir+"/BUILD", []byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	f.Dir = dir
	return f
}

func loadGraph(t *testing.T, content string) *report.UsageGraph {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deps.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}
	g, err := report.Load(path)
	if err != nil {
		t.Fatalf("report.Load() error = %v", err)
	}
	return g
}

const authReport = `{
  "src/jvm/auth:auth": {
    "cost": 10,
    "cost_transitive": 120,
    "products_total": 4,
    "dependencies": [
      {"target": "src/jvm/db:db", "dependency_type": "declared", "products_used": 2, "products_used_ratio": 0.5, "aliases": []},
      {"target": "src/jvm/legacy:legacy", "dependency_type": "unused", "products_used": 0, "products_used_ratio": 0.0, "aliases": []},
      {"target": "src/jvm/old:old", "dependency_type": "unused", "products_used": 0, "products_used_ratio": 0.0, "aliases": []},
      {"target": "src/jvm/util:util", "dependency_type": "undeclared", "products_used": 1, "products_used_ratio": 0.25, "aliases": []}
    ]
  }
}`

func TestFindUnused_ReportsDeadDeclarations(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
        'src/jvm/legacy',
        'src/jvm/old',  # skip-sanitize
    ],
)
`)
	a := &Analyzer{Graph: loadGraph(t, authReport)}

	findings := a.FindUnused(f)
	require.Len(t, findings, 1, "skip-marked entry must be exempt")
	assert.Equal(t, "src/jvm/legacy", findings[0].Name)
	assert.Equal(t, "src/jvm/auth", findings[0].Owner.String())
	assert.Equal(t, "src/jvm/legacy", findings[0].Entry.Literal)
}

func TestFindUnused_TargetAbsentFromReport(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", "java_library(\n    name='auth',\n    dependencies=['src/jvm/legacy'],\n)\n")
	a := &Analyzer{Graph: loadGraph(t, `{}`)}

	assert.Empty(t, a.FindUnused(f), "stale report must not produce findings")
}

func TestFindUnused_ExportsBlockExempt(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
    ],
    exports=[
        'src/jvm/legacy',
    ],
)
`)
	a := &Analyzer{Graph: loadGraph(t, authReport)}

	assert.Empty(t, a.FindUnused(f), "exports entries are not imports")
}

func TestFindUnused_RelativeEntryNormalized(t *testing.T) {
	f := parseFile(t, "src/jvm/db", "java_library(\n    name='db',\n    dependencies=[':pool'],\n)\n")
	g := loadGraph(t, `{"src/jvm/db:db": {"dependencies": [
        {"target": "src/jvm/db:pool", "dependency_type": "declared", "aliases": []}
    ]}}`)
	a := &Analyzer{Graph: g}

	assert.Empty(t, a.FindUnused(f), "relative ':pool' must match src/jvm/db:pool")
}

func TestFindUndeclared_ReportsHiddenCoupling(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
    ],
)
`)
	a := &Analyzer{Graph: loadGraph(t, authReport)}

	findings := a.FindUndeclared(f)
	require.Len(t, findings, 1)
	assert.Equal(t, "src/jvm/auth", findings[0].Owner.String())
	assert.Equal(t, []string{"src/jvm/util"}, findings[0].Names)
	require.NotNil(t, findings[0].Block)
	assert.Equal(t, buildfile.KeywordDependencies, findings[0].Block.Keyword)
}

func TestFindUndeclared_AlreadyDeclaredSuppressed(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
        'src/jvm/util',
    ],
)
`)
	a := &Analyzer{Graph: loadGraph(t, authReport)}

	assert.Empty(t, a.FindUndeclared(f))
}

func TestFindUndeclared_ExportsOnlyTargetHasNilBlock(t *testing.T) {
	f := parseFile(t, "src/jvm/auth", `java_library(
    name='auth',
    exports=[
        'src/jvm/db',
    ],
)
`)
	a := &Analyzer{Graph: loadGraph(t, authReport)}

	findings := a.FindUndeclared(f)
	require.Len(t, findings, 1)
	assert.Nil(t, findings[0].Block, "no dependencies list to patch")
	assert.Equal(t, []string{"src/jvm/util"}, findings[0].Names)
}

func TestFindUndeclared_ExportsClosureSuppresses(t *testing.T) {
	// a exports b, b exports c: using c through a's chain is visible, not
	// hidden coupling.
	idx := NewExportIndex()
	require.NoError(t, idx.AddFile(parseFile(t, "src/jvm/a", "java_library(\n    name='a',\n    dependencies=['src/jvm/b'],\n    exports=['src/jvm/b'],\n)\n")))
	require.NoError(t, idx.AddFile(parseFile(t, "src/jvm/b", "java_library(\n    name='b',\n    dependencies=['src/jvm/c'],\n    exports=['src/jvm/c'],\n)\n")))

	g := loadGraph(t, `{"src/jvm/a:a": {"dependencies": [
        {"target": "src/jvm/b:b", "dependency_type": "declared", "aliases": []},
        {"target": "src/jvm/c:c", "dependency_type": "undeclared", "aliases": []},
        {"target": "src/jvm/d:d", "dependency_type": "undeclared", "aliases": []}
    ]}}`)

	f := parseFile(t, "src/jvm/a", "java_library(\n    name='a',\n    dependencies=['src/jvm/b'],\n)\n")

	withIndex := &Analyzer{Graph: g, Exports: idx}
	findings := withIndex.FindUndeclared(f)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"src/jvm/d"}, findings[0].Names, "exported chain must be suppressed, the rest reported")

	withoutIndex := &Analyzer{Graph: g}
	findings = withoutIndex.FindUndeclared(f)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"src/jvm/c", "src/jvm/d"}, findings[0].Names)
}
