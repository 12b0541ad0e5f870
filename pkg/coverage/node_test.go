package coverage_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// sampleTree builds:
//
//	module
//	└── package edu.hm
//	    ├── file Covered.java  (class Covered: LINE 3/1, BRANCH 2/2, methods a (c=2), b (c=5))
//	    └── file Missed.java   (class Missed:  LINE 0/4)
func sampleTree(t *testing.T) *coverage.Node {
	t.Helper()

	root := coverage.NewModule("module")
	pkg := root.FindOrCreatePackage("edu/hm")

	covered := pkg.FindOrCreateFile("Covered.java", "edu/hm/Covered.java")
	coveredClass := covered.FindOrCreateClass("edu.hm.Covered")
	require.NoError(t, coveredClass.AddValue(coverage.MustCoverage(coverage.Line, 3, 1)))
	require.NoError(t, coveredClass.AddValue(coverage.MustCoverage(coverage.Branch, 2, 2)))

	a := coverage.NewMethod("a", "()V", 10)
	require.NoError(t, a.AddValue(coverage.MustCoverage(coverage.Line, 2, 0)))
	require.NoError(t, a.AddValue(coverage.NewInteger(coverage.Complexity, 2)))
	coveredClass.AddChild(a)

	b := coverage.NewMethod("b", "(I)V", 20)
	require.NoError(t, b.AddValue(coverage.MustCoverage(coverage.Line, 1, 1)))
	require.NoError(t, b.AddValue(coverage.NewInteger(coverage.Complexity, 5)))
	coveredClass.AddChild(b)

	missed := pkg.FindOrCreateFile("Missed.java", "edu/hm/Missed.java")
	missedClass := missed.FindOrCreateClass("edu.hm.Missed")
	require.NoError(t, missedClass.AddValue(coverage.MustCoverage(coverage.Line, 0, 4)))

	return root
}

func TestNode_AggregatesChildren(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	line, ok := root.Value(coverage.Line)
	require.True(t, ok)
	assert.Equal(t, 3, line.Covered())
	assert.Equal(t, 5, line.Missed())

	branch, ok := root.Value(coverage.Branch)
	require.True(t, ok)
	assert.Equal(t, 4, branch.Total())

	_, ok = root.Value(coverage.Mutation)
	assert.False(t, ok, "metrics nobody measured must be absent, not zero")
}

func TestNode_OwnValueTakesPrecedence(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	class, ok := root.FindClass("edu.hm.Covered")
	require.True(t, ok)

	line, ok := class.Value(coverage.Line)
	require.True(t, ok)
	assert.Equal(t, "LINE: 75.00% (3/4)", line.String())

	complexity, ok := class.Value(coverage.Complexity)
	require.True(t, ok)
	assert.Equal(t, 7, complexity.Int())
}

func TestNode_ElementCounts(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	files, ok := root.Value(coverage.File)
	require.True(t, ok)
	assert.Equal(t, 1, files.Covered())
	assert.Equal(t, 1, files.Missed())

	methods, ok := root.Value(coverage.Method)
	require.True(t, ok)
	assert.Equal(t, 2, methods.Covered())

	module, ok := root.Value(coverage.Module)
	require.True(t, ok)
	assert.Equal(t, 1, module.Covered())
	assert.Equal(t, 0, module.Missed())
}

func TestNode_DerivedMetrics(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	loc, ok := root.Value(coverage.LOC)
	require.True(t, ok)
	assert.Equal(t, 8, loc.Int())

	maximum, ok := root.Value(coverage.ComplexityMaximum)
	require.True(t, ok)
	assert.Equal(t, 5, maximum.Int())

	density, ok := root.Value(coverage.ComplexityDensity)
	require.True(t, ok)
	assert.Equal(t, "COMPLEXITY-DENSITY: 0.88", density.String())

	assert.Equal(t, []coverage.Metric{
		coverage.Module, coverage.Package, coverage.File, coverage.Class, coverage.Method,
		coverage.Line, coverage.Branch, coverage.Complexity, coverage.ComplexityMaximum,
		coverage.ComplexityDensity, coverage.LOC,
	}, root.Metrics())
}

func TestNode_AddValueRejectsDuplicates(t *testing.T) {
	t.Parallel()

	n := coverage.NewClass("A")
	require.NoError(t, n.AddValue(coverage.MustCoverage(coverage.Line, 1, 0)))

	err := n.AddValue(coverage.MustCoverage(coverage.Line, 0, 1))
	require.ErrorIs(t, err, coverage.ErrDuplicateValue)
}

func TestNode_AddChildEnforcesSingleOwner(t *testing.T) {
	t.Parallel()

	first := coverage.NewPackage("a")
	second := coverage.NewPackage("b")
	file := coverage.NewFile("A.java", "a/A.java")
	first.AddChild(file)

	assert.Panics(t, func() { second.AddChild(file) })
	assert.Same(t, first, file.Parent())
	assert.Equal(t, "a", file.ParentName())
	assert.Equal(t, coverage.EmptyName, first.ParentName())
}

func TestNode_Find(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	pkg, ok := root.FindPackage("edu\\hm")
	require.True(t, ok)
	assert.Equal(t, "edu.hm", pkg.Name())

	file, ok := root.FindFile("edu/hm/Missed.java")
	require.True(t, ok)
	assert.Equal(t, "Missed.java", file.Name())

	method, ok := root.FindMethod("b", "(I)V")
	require.True(t, ok)
	assert.Equal(t, 20, method.LineNumber())

	_, ok = root.FindMethod("b", "()V")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"edu/hm/Covered.java", "edu/hm/Missed.java"}, root.Files())
}

func TestNode_ComputeDelta(t *testing.T) {
	t.Parallel()

	current := sampleTree(t)
	reference := coverage.NewModule("module")
	pkg := reference.FindOrCreatePackage("edu.hm")
	class := pkg.FindOrCreateFile("Old.java", "edu/hm/Old.java").FindOrCreateClass("Old")
	require.NoError(t, class.AddValue(coverage.MustCoverage(coverage.Line, 1, 3)))

	deltas := current.ComputeDelta(reference)

	lineDelta, ok := deltas[coverage.Line]
	require.True(t, ok)

	f, _ := lineDelta.Float64()
	assert.InDelta(t, 12.5, f, 1e-9)

	_, ok = deltas[coverage.Branch]
	assert.False(t, ok)
}

func TestNode_CopyTreeIsIndependent(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	c := root.CopyTree()

	require.True(t, root.Equal(c))
	assert.Nil(t, c.Parent())

	file, ok := c.FindFile("edu/hm/Missed.java")
	require.True(t, ok)
	file.AddCounters(1, 1, 0)

	assert.False(t, root.Equal(c))
}

// randomTree builds a tree where only methods and some classes carry line values.
func randomTree(rng *rand.Rand) *coverage.Node {
	root := coverage.NewModule("random")

	for p := range 1 + rng.IntN(3) {
		pkg := root.FindOrCreatePackage(fmt.Sprintf("p%d", p))

		for f := range 1 + rng.IntN(3) {
			file := pkg.FindOrCreateFile(fmt.Sprintf("F%d.java", f), fmt.Sprintf("p%d/F%d.java", p, f))
			class := file.FindOrCreateClass(fmt.Sprintf("C%d", f))

			for m := range rng.IntN(4) {
				method := coverage.NewMethod(fmt.Sprintf("m%d", m), "()V", m)
				_ = method.AddValue(coverage.MustCoverage(coverage.Line, rng.IntN(10), rng.IntN(10)))
				class.AddChild(method)
			}
		}
	}

	return root
}

func TestNode_AggregationEqualsSumOfChildren(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))

	for range 25 {
		root := randomTree(rng)

		for _, kind := range []coverage.Metric{coverage.Module, coverage.Package, coverage.File, coverage.Class} {
			for _, node := range root.All(kind) {
				assertSumOfChildren(t, node, coverage.Line)
			}
		}
	}
}

func assertSumOfChildren(t *testing.T, node *coverage.Node, metric coverage.Metric) {
	t.Helper()

	var covered, missed int

	found := false

	for _, child := range node.Children() {
		v, ok := child.Value(metric)
		if !ok {
			continue
		}

		found = true
		covered += v.Covered()
		missed += v.Missed()
	}

	v, ok := node.Value(metric)
	require.Equal(t, found, ok, node.String())

	if ok {
		assert.Equal(t, covered, v.Covered(), node.String())
		assert.Equal(t, missed, v.Missed(), node.String())
	}
}

func TestNode_Path(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)

	method, ok := root.FindMethod("a", "()V")
	require.True(t, ok)
	assert.Equal(t, "module/edu.hm/Covered.java/edu.hm.Covered/a", method.Path())

	file, ok := root.FindFile("Missed.java")
	require.True(t, ok)
	assert.Equal(t, "edu/hm/Missed.java", file.Path())
}
