package sweep

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisklabs/pants-dependency-sanitizer/report"
)

const authReport = `{
  "src/jvm/auth:auth": {
    "cost": 10,
    "cost_transitive": 120,
    "products_total": 4,
    "dependencies": [
      {"target": "src/jvm/db:db", "dependency_type": "declared", "products_used": 2, "products_used_ratio": 0.5, "aliases": []},
      {"target": "src/jvm/legacy:legacy", "dependency_type": "unused", "products_used": 0, "products_used_ratio": 0.0, "aliases": []},
      {"target": "src/jvm/util:util", "dependency_type": "undeclared", "products_used": 1, "products_used_ratio": 0.25, "aliases": []}
    ]
  }
}`

const authBuild = `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
        'src/jvm/legacy',
        'src/jvm/old',  # skip-sanitize
    ],
)
`

// writeTree materializes files (relative slash paths) under a fresh temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("os.MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("os.WriteFile() error = %v", err)
		}
	}
	return root
}

func testOptions(root string, out io.Writer) Options {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return Options{
		Root:       root,
		ReportFile: filepath.Join(root, "deps.json"),
		Workers:    2,
		Out:        out,
		Log:        log,
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("os.ReadFile() error = %v", err)
	}
	return string(data)
}

func TestRun_UnusedShow(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deps.json":          authReport,
		"src/jvm/auth/BUILD": authBuild,
	})
	var out bytes.Buffer

	summary, err := Run(context.Background(), OpUnused, ModeShow, testOptions(root, &out))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesScanned)
	assert.Equal(t, 1, summary.ModulesAffected)
	assert.Equal(t, 1, summary.Issues)
	assert.Equal(t, 0, summary.FilesChanged, "show mode never writes")
	assert.Contains(t, out.String(), "src/jvm/auth: unused src/jvm/legacy")
	assert.Contains(t, out.String(), "modules affected: 1, total dependencies unused: 1")
	assert.NotContains(t, out.String(), "src/jvm/old", "skip-marked entry must stay silent")

	assert.Equal(t, authBuild, readFile(t, root, "src/jvm/auth/BUILD"))
}

func TestRun_UnusedFix_RewritesAndConverges(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deps.json":          authReport,
		"src/jvm/auth/BUILD": authBuild,
	})
	var out bytes.Buffer

	summary, err := Run(context.Background(), OpUnused, ModeFix, testOptions(root, &out))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesChanged)
	assert.Equal(t, 1, summary.Issues)
	assert.Contains(t, out.String(), "src/jvm/auth removed: 1")

	want := `java_library(
    name='auth',
    dependencies=[
        'src/jvm/db',
        'src/jvm/old',  # skip-sanitize
    ],
)
`
	assert.Equal(t, want, readFile(t, root, "src/jvm/auth/BUILD"))

	// Second pass over the repaired tree finds nothing and touches nothing.
	summary, err = Run(context.Background(), OpUnused, ModeFix, testOptions(root, io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesChanged)
	assert.Equal(t, 0, summary.Issues)
}

func TestRun_UndeclaredFix_InsertsMissingDeps(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deps.json":          authReport,
		"src/jvm/auth/BUILD": "java_library(\n    name='auth',\n    dependencies=[\n        'src/jvm/db',\n    ],\n)\n",
	})
	var out bytes.Buffer

	summary, err := Run(context.Background(), OpUndeclared, ModeFix, testOptions(root, &out))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesChanged)
	assert.Contains(t, out.String(), "src/jvm/auth added: 1")
	assert.Contains(t, out.String(), "total dependencies added: 1")

	want := "java_library(\n    name='auth',\n    dependencies=[\n        'src/jvm/db',\n        'src/jvm/util',\n    ],\n)\n"
	assert.Equal(t, want, readFile(t, root, "src/jvm/auth/BUILD"))
}

func TestRun_SortNeedsNoReport(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/jvm/auth/BUILD": "java_library(\n    name='auth',\n    dependencies=[\n        \"src/jvm/legacy\",\n        'src/jvm/db',\n    ],\n)\n",
	})
	var out bytes.Buffer

	summary, err := Run(context.Background(), OpSort, ModeFix, testOptions(root, &out))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesChanged)
	assert.Contains(t, out.String(), "files sorted: 1")

	want := "java_library(\n    name='auth',\n    dependencies=[\n        'src/jvm/db',\n        'src/jvm/legacy',\n    ],\n)\n"
	assert.Equal(t, want, readFile(t, root, "src/jvm/auth/BUILD"))

	// Sorted input is a fixed point.
	summary, err = Run(context.Background(), OpSort, ModeFix, testOptions(root, io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesChanged)
}

func TestRun_MissingReportFails(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/jvm/auth/BUILD": authBuild,
	})

	_, err := Run(context.Background(), OpUnused, ModeShow, testOptions(root, io.Discard))
	if !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("Run() error = %v, want report.ErrNotFound", err)
	}
}

func TestRun_MalformedFileSkippedBestEffort(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deps.json":            authReport,
		"src/jvm/auth/BUILD":   authBuild,
		"src/jvm/broken/BUILD": "dependencies=[\n    'a/a',\n",
	})
	var out bytes.Buffer

	summary, err := Run(context.Background(), OpUnused, ModeShow, testOptions(root, &out))
	require.NoError(t, err, "one bad file must not abort the sweep")
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 1, summary.FilesScanned)
	assert.Contains(t, out.String(), "src/jvm/auth: unused src/jvm/legacy")
}

func TestDiscover_SkipsThirdPartyAndDotDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/jvm/auth/BUILD":   authBuild,
		"3rdparty/jvm/BUILD":   "dependencies=['a/a']\n",
		".git/BUILD":           "dependencies=['a/a']\n",
		"src/jvm/auth/README":  "not a build file\n",
		"src/jvm/db/BUILD.ext": "dependencies=['a/a']\n",
	})
	opts := testOptions(root, io.Discard)
	opts.fill()

	paths, err := discover(opts)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(paths[0]), "src/jvm/auth/BUILD"))
}

func TestDiscover_PrefixRestrictsTheWalk(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/jvm/auth/BUILD":   authBuild,
		"src/scala/core/BUILD": "dependencies=['a/a']\n",
	})
	opts := testOptions(root, io.Discard)
	opts.Prefix = "src/scala"
	opts.fill()

	paths, err := discover(opts)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(paths[0]), "src/scala/core/BUILD"))
}
