package changes_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/changes"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

const before = "package a\n\nfunc A() int {\n\treturn 1\n}\n"

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		after string
		want  []changes.Change
	}{
		{"identical", before, nil},
		{"replace", "package a\n\nfunc A() int {\n\treturn 2\n}\n", []changes.Change{{Type: changes.Replace, FromLine: 4, ToLine: 4}}},
		{"insert", "package a\n\nfunc A() int {\n\tx := 1\n\treturn 1\n}\n", []changes.Change{{Type: changes.Insert, FromLine: 4, ToLine: 4}}},
		{"delete", "package a\n\nfunc A() int {\n}\n", []changes.Change{{Type: changes.Delete, FromLine: 4, ToLine: 4}}},
		{"missing trailing newline", "package a\n\nfunc A() int {\n\treturn 1\n}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fc := changes.Diff("a.go", before, tt.after)
			assert.Equal(t, tt.want, fc.Changes)
		})
	}
}

func TestDiff_LineMapping(t *testing.T) {
	t.Parallel()

	fc := changes.Diff("a.go", before, "// header\n"+before)

	assert.Equal(t, []int{1}, fc.ModifiedLines())

	old, ok := fc.OldLine(5)
	require.True(t, ok)
	assert.Equal(t, 4, old)

	_, ok = fc.OldLine(1)
	assert.False(t, ok)
}

func TestNewFile(t *testing.T) {
	t.Parallel()

	fc := changes.NewFile("a.go", "a\nb\nc")

	assert.Equal(t, []int{1, 2, 3}, fc.ModifiedLines())
	assert.Len(t, fc.ChangesByType(changes.Insert), 1)
	assert.Empty(t, changes.NewFile("empty.go", "").Changes)
}

func fileTree(counters map[int][2]int) (*coverage.Node, *coverage.Node) {
	root := coverage.NewModule("m")
	file := root.FindOrCreatePackage("a").FindOrCreateFile("a.go", "a/a.go")

	for line, c := range counters {
		file.AddCounters(line, c[0], c[1])
	}

	return root, file
}

func TestAttachChangedLines(t *testing.T) {
	t.Parallel()

	root, file := fileTree(map[int][2]int{4: {1, 0}})

	attached := changes.AttachChangedLines(root, map[string]changes.FileChanges{
		"a/a.go":     changes.Diff("a/a.go", before, "package a\n\nfunc A() int {\n\treturn 2\n}\n"),
		"b/other.go": changes.NewFile("b/other.go", "x\n"),
	})

	assert.Equal(t, 1, attached)
	assert.Equal(t, []int{4}, file.ModifiedLines())
}

func TestAttachIndirectChanges(t *testing.T) {
	t.Parallel()

	reference, _ := fileTree(map[int][2]int{3: {0, 1}, 4: {1, 0}, 5: {1, 0}})
	current, file := fileTree(map[int][2]int{1: {1, 0}, 4: {1, 0}, 5: {0, 1}, 6: {0, 1}})

	// One line was prepended, so current line n was line n-1 before.
	fc := changes.Diff("a/a.go", before, "// header\n"+before)
	changed := map[string]changes.FileChanges{"a/a.go": fc}

	changes.AttachChangedLines(current, changed)
	changes.AttachIndirectChanges(current, reference, changed)

	assert.Equal(t, map[int]int{4: 1, 5: -1, 6: -1}, file.IndirectCoverageChanges())
}

func TestDiffDirs(t *testing.T) {
	t.Parallel()

	referenceDir, currentDir := t.TempDir(), t.TempDir()

	write := func(dir, name, content string) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	write(referenceDir, "a/same.go", before)
	write(currentDir, "a/same.go", before)
	write(referenceDir, "a/changed.go", before)
	write(currentDir, "a/changed.go", "package a\n")
	write(currentDir, "a/new.go", "package a\n\nvar x = 1\n")

	result, err := changes.DiffDirs(context.Background(), changes.Differ{}, referenceDir, currentDir,
		[]string{"a/same.go", "a/changed.go", "a/new.go", "a/gone.go"})
	require.NoError(t, err)

	assert.Len(t, result, 2)
	assert.Equal(t, []int{1, 2, 3}, result["a/new.go"].ModifiedLines())
	assert.NotEmpty(t, result["a/changed.go"].ChangesByType(changes.Delete))
}

func TestDiffDirs_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := changes.DiffDirs(ctx, changes.Differ{}, t.TempDir(), t.TempDir(), []string{"a.go"})
	require.ErrorIs(t, err, context.Canceled)
}
