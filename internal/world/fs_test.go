package world

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))
	}
}

func relPaths(files []SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath
	}
	return out
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.go",
		"pkg/util.go",
		"pkg/util.txt",
		"vendor/lib/lib.go",
		".git/config",
		"node_modules/x.go",
	)

	files, err := NewScanner().Discover(context.Background(), []SourceSet{{BaseDir: root}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "pkg/util.go", "pkg/util.txt", "vendor/lib/lib.go"}, relPaths(files))
	assert.Equal(t, filepath.Join(root, "pkg", "util.go"), files[1].Path())
}

func TestDiscover_IncludeExclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "main.go", "pkg/util.go", "pkg/util.txt", "vendor/lib/lib.go")

	tests := []struct {
		name string
		set  SourceSet
		want []string
	}{
		{"include by name", SourceSet{Include: []string{"*.go"}}, []string{"main.go", "pkg/util.go", "vendor/lib/lib.go"}},
		{"include any depth", SourceSet{Include: []string{"**/*.txt"}}, []string{"pkg/util.txt"}},
		{"include by path", SourceSet{Include: []string{"pkg/*"}}, []string{"pkg/util.go", "pkg/util.txt"}},
		{"exclude dir", SourceSet{Include: []string{"*.go"}, Exclude: []string{"vendor"}}, []string{"main.go", "pkg/util.go"}},
		{"exclude glob", SourceSet{Exclude: []string{"*.txt", "vendor/*"}}, []string{"main.go", "pkg/util.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.set.BaseDir = root
			files, err := NewScanner().Discover(context.Background(), []SourceSet{tt.set})
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(files))
		})
	}
}

func TestDiscover_SetsKeepOrder(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, "z.txt")
	writeTree(t, b, "a.txt")

	files, err := NewScanner().Discover(context.Background(), []SourceSet{{BaseDir: a}, {BaseDir: b}})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, a, files[0].BaseDir)
	assert.Equal(t, b, files[1].BaseDir)
}

func TestDiscover_Errors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "file.txt")

	_, err := NewScanner().Discover(context.Background(), []SourceSet{{BaseDir: filepath.Join(root, "missing")}})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewScanner().Discover(context.Background(), []SourceSet{{BaseDir: filepath.Join(root, "file.txt")}})
	assert.ErrorContains(t, err, "is not a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewScanner().Discover(ctx, []SourceSet{{BaseDir: root}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsIgnoredRel(t *testing.T) {
	tests := []struct {
		rel, name string
		patterns  []string
		want      bool
	}{
		{"vendor", "vendor", []string{"vendor/"}, true},
		{"a/vendor", "vendor", []string{"vendor"}, true},
		{"vendor/x.go", "x.go", []string{"vendor"}, true},
		{"src/x.go", "x.go", []string{"*.go"}, true},
		{"src/x.go", "x.go", []string{"src/*.txt"}, false},
		{"src/x.go", "x.go", []string{"", "  "}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isIgnoredRel(tt.rel, tt.name, tt.patterns), "%s %v", tt.rel, tt.patterns)
	}
}

func TestSourceSet_Selects(t *testing.T) {
	set := SourceSet{BaseDir: "/src", Include: []string{"*.go"}, Exclude: []string{"vendor"}}

	tests := []struct {
		rel  string
		want bool
	}{
		{"main.go", true},
		{"pkg/util.go", true},
		{"README.md", false},
		{"vendor/lib.go", false},
		{".git/hooks/x.go", false},
		{"a/node_modules/b.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Selects(tt.rel))
		})
	}

	assert.True(t, set.Skips("vendor"))
	assert.False(t, set.Skips("pkg"))
}
