package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

func moduleWithClass(t *testing.T, module, pkg, class string, covered, missed int) *coverage.Node {
	t.Helper()

	root := coverage.NewModule(module)
	file := root.FindOrCreatePackage(pkg).FindOrCreateFile(class+".java", pkg+"/"+class+".java")
	c := file.FindOrCreateClass(class)
	require.NoError(t, c.AddValue(coverage.MustCoverage(coverage.Line, covered, missed)))

	for line := range covered {
		file.AddCounters(line+1, 1, 0)
	}

	for line := range missed {
		file.AddCounters(covered+line+1, 0, 1)
	}

	return root
}

func TestMerge_DisjointPackages(t *testing.T) {
	t.Parallel()

	a := moduleWithClass(t, "m", "a", "A", 3, 1)
	b := moduleWithClass(t, "m", "b", "B", 0, 4)

	merged, err := a.Merge(b)
	require.NoError(t, err)

	line, ok := merged.Value(coverage.Line)
	require.True(t, ok)
	assert.Equal(t, 3, line.Covered())
	assert.Equal(t, 5, line.Missed())
	assert.Len(t, merged.All(coverage.Package), 2)

	// Inputs stay untouched.
	assert.Len(t, a.All(coverage.Package), 1)
	assert.Len(t, b.All(coverage.Package), 1)
}

func TestMerge_IsCommutative(t *testing.T) {
	t.Parallel()

	a := moduleWithClass(t, "m", "a", "A", 3, 1)
	b := moduleWithClass(t, "m", "b", "B", 0, 4)

	ab, err := a.Merge(b)
	require.NoError(t, err)

	ba, err := b.Merge(a)
	require.NoError(t, err)

	assert.True(t, ab.Equal(ba))
}

func TestMerge_IsAssociative(t *testing.T) {
	t.Parallel()

	a := moduleWithClass(t, "m", "a", "A", 3, 1)
	b := moduleWithClass(t, "m", "b", "B", 0, 4)
	c := moduleWithClass(t, "m", "c", "C", 2, 2)

	ab, err := a.Merge(b)
	require.NoError(t, err)
	left, err := ab.Merge(c)
	require.NoError(t, err)

	bc, err := b.Merge(c)
	require.NoError(t, err)
	right, err := a.Merge(bc)
	require.NoError(t, err)

	assert.True(t, left.Equal(right))
}

func TestMerge_SameClassKeepsBestLeafValue(t *testing.T) {
	t.Parallel()

	a := moduleWithClass(t, "m", "a", "A", 1, 3)
	b := moduleWithClass(t, "m", "a", "A", 3, 1)

	merged, err := a.Merge(b)
	require.NoError(t, err)

	class, ok := merged.FindClass("A")
	require.True(t, ok)

	line, ok := class.Value(coverage.Line)
	require.True(t, ok)
	assert.Equal(t, 3, line.Covered())
	assert.Equal(t, 4, line.Total())

	file, ok := merged.FindFile("a/A.java")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, file.LinesWithCoverage())
	assert.Equal(t, []int{4}, file.MissedLines())
}

func TestMerge_IdenticalTreesAreIdempotent(t *testing.T) {
	t.Parallel()

	a := moduleWithClass(t, "m", "a", "A", 3, 1)

	merged, err := a.Merge(a.CopyTree())
	require.NoError(t, err)

	assert.True(t, merged.Equal(a))
}

func TestMerge_RejectsDifferentRoots(t *testing.T) {
	t.Parallel()

	_, err := moduleWithClass(t, "one", "a", "A", 1, 0).Merge(moduleWithClass(t, "two", "a", "A", 1, 0))
	require.ErrorIs(t, err, coverage.ErrIncompatibleNodes)
}

func TestMerge_IncompatibleLeafTotals(t *testing.T) {
	t.Parallel()

	_, err := moduleWithClass(t, "m", "a", "A", 1, 1).Merge(moduleWithClass(t, "m", "a", "A", 1, 3))
	require.ErrorIs(t, err, coverage.ErrIncompatibleValues)
}

func TestMergeAll(t *testing.T) {
	t.Parallel()

	_, err := coverage.MergeAll(nil)
	require.ErrorIs(t, err, coverage.ErrEmptyMerge)

	single := moduleWithClass(t, "m", "a", "A", 1, 0)
	got, err := coverage.MergeAll([]*coverage.Node{single})
	require.NoError(t, err)
	assert.Same(t, single, got)

	same, err := coverage.MergeAll([]*coverage.Node{
		moduleWithClass(t, "m", "a", "A", 1, 0),
		moduleWithClass(t, "m", "b", "B", 0, 1),
		moduleWithClass(t, "m", "c", "C", 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, coverage.Module, same.Kind())
	assert.Len(t, same.Children(), 3)

	container, err := coverage.MergeAll([]*coverage.Node{
		moduleWithClass(t, "two", "a", "A", 1, 0),
		moduleWithClass(t, "one", "b", "B", 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, coverage.Container, container.Kind())
	assert.Equal(t, coverage.ContainerName, container.Name())
	require.Len(t, container.Children(), 2)
	assert.Equal(t, "one", container.Children()[0].Name())

	modules, ok := container.Value(coverage.Module)
	require.True(t, ok)
	assert.Equal(t, 1, modules.Covered())
	assert.Equal(t, 1, modules.Missed())
	assert.NotContains(t, container.Metrics(), coverage.Container)
}

func TestMerge_FileDetails(t *testing.T) {
	t.Parallel()

	build := func(modified []int, indirect map[int]int, mutation coverage.Mutant) *coverage.Node {
		root := coverage.NewModule("m")
		file := root.FindOrCreatePackage("p").FindOrCreateFile("F.go", "p/F.go")
		file.AddCounters(1, 1, 0)
		file.AddModifiedLines(modified...)

		for line, delta := range indirect {
			file.AddIndirectCoverageChange(line, delta)
		}

		file.AddMutation(mutation)

		return root
	}

	killed := coverage.Mutant{Line: 1, Mutator: "negate", Status: coverage.Killed, Detected: true}
	survived := coverage.Mutant{Line: 1, Mutator: "remove", Status: coverage.Survived}

	a := build([]int{1, 2}, map[int]int{5: 1}, killed)
	b := build([]int{3}, map[int]int{5: -2}, survived)

	ab, err := a.Merge(b)
	require.NoError(t, err)
	ba, err := b.Merge(a)
	require.NoError(t, err)
	assert.True(t, ab.Equal(ba))

	file, ok := ab.FindFile("p/F.go")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, file.ModifiedLines())
	assert.Equal(t, map[int]int{5: -2}, file.IndirectCoverageChanges())
	assert.Equal(t, []coverage.Mutant{killed, survived}, file.Mutations())
}
