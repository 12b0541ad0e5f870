package coverage

import (
	"cmp"
	"maps"
	"slices"
)

// RelativePath returns the path of a file node relative to its source folder.
func (n *Node) RelativePath() string { return n.relativePath }

// AddCounters records the covered and missed items of a source line of a file node.
// Counters of a line that is already known are replaced.
func (n *Node) AddCounters(line, covered, missed int) {
	if n.lines == nil {
		n.lines = make(map[int]LineCounters)
	}

	n.lines[line] = LineCounters{Covered: covered, Missed: missed}
}

// Counters returns the counters of the given line.
func (n *Node) Counters(line int) (LineCounters, bool) {
	c, ok := n.lines[line]

	return c, ok
}

// HasCoverageForLine reports whether the line has coverage counters.
func (n *Node) HasCoverageForLine(line int) bool {
	_, ok := n.lines[line]

	return ok
}

// LinesWithCoverage returns the sorted numbers of all lines with counters.
func (n *Node) LinesWithCoverage() []int {
	return slices.Sorted(maps.Keys(n.lines))
}

// MissedLines returns the sorted lines that are plain lines and not covered.
func (n *Node) MissedLines() []int {
	return n.linesWhere(func(c LineCounters) bool { return c.Covered == 0 && c.Missed == 1 })
}

// PartiallyCoveredLines maps each branch line with missed branches to its missed count.
func (n *Node) PartiallyCoveredLines() map[int]int {
	partial := make(map[int]int)

	for line, c := range n.lines {
		if c.Total() > 1 && c.Missed > 0 {
			partial[line] = c.Missed
		}
	}

	return partial
}

func (n *Node) linesWhere(keep func(LineCounters) bool) []int {
	var lines []int

	for line, c := range n.lines {
		if keep(c) {
			lines = append(lines, line)
		}
	}

	slices.Sort(lines)

	return lines
}

// AddMutation records a mutation reported for a file node.
func (n *Node) AddMutation(m Mutant) {
	n.mutations = append(n.mutations, m)
}

// Mutations returns the mutations of a file node.
func (n *Node) Mutations() []Mutant { return slices.Clone(n.mutations) }

// SurvivedMutationsPerLine groups the survived mutations by line.
func (n *Node) SurvivedMutationsPerLine() map[int][]Mutant {
	perLine := make(map[int][]Mutant)

	for _, m := range n.mutations {
		if m.Status == Survived {
			perLine[m.Line] = append(perLine[m.Line], m)
		}
	}

	return perLine
}

// AddModifiedLines marks lines of a file node as modified.
func (n *Node) AddModifiedLines(lines ...int) {
	if n.modifiedLines == nil {
		n.modifiedLines = make(map[int]struct{})
	}

	for _, line := range lines {
		n.modifiedLines[line] = struct{}{}
	}
}

// ModifiedLines returns the sorted modified lines of a file node.
func (n *Node) ModifiedLines() []int {
	return slices.Sorted(maps.Keys(n.modifiedLines))
}

// HasModifiedLine reports whether the given line is modified.
func (n *Node) HasModifiedLine(line int) bool {
	_, ok := n.modifiedLines[line]

	return ok
}

// HasModifiedLines reports whether any file in the subtree has modified lines.
func (n *Node) HasModifiedLines() bool {
	return !n.walk(func(node *Node) bool { return len(node.modifiedLines) == 0 })
}

// CoveredAndModifiedLines returns the sorted lines that are modified and have counters.
func (n *Node) CoveredAndModifiedLines() []int {
	var lines []int

	for line := range n.modifiedLines {
		if n.HasCoverageForLine(line) {
			lines = append(lines, line)
		}
	}

	slices.Sort(lines)

	return lines
}

// AddIndirectCoverageChange records a change of covered items on a line that was not modified.
func (n *Node) AddIndirectCoverageChange(line, hitsDelta int) {
	if n.indirect == nil {
		n.indirect = make(map[int]int)
	}

	n.indirect[line] = hitsDelta
}

// IndirectCoverageChanges returns a copy of the indirect coverage changes by line.
func (n *Node) IndirectCoverageChanges() map[int]int {
	return maps.Clone(n.indirect)
}

// HasIndirectCoverageChanges reports whether any file in the subtree has indirect changes.
func (n *Node) HasIndirectCoverageChanges() bool {
	return !n.walk(func(node *Node) bool { return len(node.indirect) == 0 })
}

// lineCoverage returns the line coverage of a single line: 1/0 when any item is covered.
func (n *Node) lineCoverage(line int) Value {
	c, ok := n.lines[line]
	if !ok {
		return EmptyCoverage(Line)
	}

	if c.Covered > 0 {
		return MustCoverage(Line, 1, 0)
	}

	return MustCoverage(Line, 0, 1)
}

// branchCoverage returns the branch coverage of a single line, empty for plain lines.
func (n *Node) branchCoverage(line int) Value {
	c, ok := n.lines[line]
	if !ok || c.Total() <= 1 {
		return EmptyCoverage(Branch)
	}

	return MustCoverage(Branch, c.Covered, c.Missed)
}

// mergeFileDetails combines the per-line data of two file nodes. For lines known to
// both sides the larger covered count and the larger total win.
func (n *Node) mergeFileDetails(other *Node) {
	for line, oc := range other.lines {
		c, ok := n.lines[line]
		if !ok {
			n.AddCounters(line, oc.Covered, oc.Missed)

			continue
		}

		covered := max(c.Covered, oc.Covered)
		total := max(c.Total(), oc.Total())
		n.AddCounters(line, covered, total-covered)
	}

	for line := range other.modifiedLines {
		n.AddModifiedLines(line)
	}

	for line, delta := range other.indirect {
		if existing, ok := n.indirect[line]; ok && !strongerChange(delta, existing) {
			continue
		}

		n.AddIndirectCoverageChange(line, delta)
	}

	for _, m := range other.mutations {
		if !slices.Contains(n.mutations, m) {
			n.mutations = append(n.mutations, m)
		}
	}

	slices.SortFunc(n.mutations, compareMutations)
}

func compareMutations(a, b Mutant) int {
	return cmp.Or(
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Mutator, b.Mutator),
		cmp.Compare(a.Method, b.Method),
		cmp.Compare(a.Signature, b.Signature),
		cmp.Compare(a.Description, b.Description),
		cmp.Compare(a.Status, b.Status),
		cmp.Compare(a.KillingTest, b.KillingTest),
	)
}

// strongerChange orders indirect changes by magnitude, then by value.
func strongerChange(candidate, existing int) bool {
	if abs(candidate) != abs(existing) {
		return abs(candidate) > abs(existing)
	}

	return candidate > existing
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
