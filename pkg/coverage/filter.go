package coverage

// FilterByModifiedLines returns a new tree that only contains files with modified lines
// that have coverage. Each remaining file carries line, branch and mutation values
// computed from its modified lines only. Without any match an empty copy of this node is returned.
func (n *Node) FilterByModifiedLines() *Node {
	return n.filterOrEmpty((*Node).filterFileByModifiedLines)
}

// FilterByModifiedFiles returns a new tree with the complete subtrees of all files
// that have modified lines with coverage.
func (n *Node) FilterByModifiedFiles() *Node {
	return n.filterOrEmpty(func(file *Node) (*Node, bool) {
		if len(file.CoveredAndModifiedLines()) == 0 {
			return nil, false
		}

		return file.CopyTree(), true
	})
}

// FilterByIndirectChanges returns a new tree with the files whose coverage changed on
// lines that were not modified.
func (n *Node) FilterByIndirectChanges() *Node {
	return n.filterOrEmpty((*Node).filterFileByIndirectChanges)
}

func (n *Node) filterOrEmpty(fileFilter func(*Node) (*Node, bool)) *Node {
	filtered, ok := n.filterTree(fileFilter)
	if !ok {
		return n.Copy()
	}

	return filtered
}

func (n *Node) filterTree(fileFilter func(*Node) (*Node, bool)) (*Node, bool) {
	if n.kind == File {
		return fileFilter(n)
	}

	var kept []*Node

	for _, child := range n.children {
		if filtered, ok := child.filterTree(fileFilter); ok {
			kept = append(kept, filtered)
		}
	}

	if len(kept) == 0 {
		return nil, false
	}

	c := n.Copy()
	for _, k := range kept {
		c.AddChild(k)
	}

	return c, true
}

func (n *Node) filterFileByModifiedLines() (*Node, bool) {
	lines := n.CoveredAndModifiedLines()
	if len(lines) == 0 {
		return nil, false
	}

	c := NewFile(n.name, n.relativePath)
	c.AddModifiedLines(n.ModifiedLines()...)

	lineCoverage := EmptyCoverage(Line)
	branchCoverage := EmptyCoverage(Branch)

	for _, line := range lines {
		counters := n.lines[line]
		c.AddCounters(line, counters.Covered, counters.Missed)

		if counters.Total() == 1 {
			lineCoverage, _ = lineCoverage.Add(MustCoverage(Line, counters.Covered, counters.Missed))

			continue
		}

		lineCoverage, _ = lineCoverage.Add(n.lineCoverage(line))
		branchCoverage, _ = branchCoverage.Add(MustCoverage(Branch, counters.Covered, counters.Missed))
	}

	c.addIfSet(lineCoverage)
	c.addIfSet(branchCoverage)

	var detected, undetected int

	for _, m := range n.mutations {
		if !n.HasModifiedLine(m.Line) {
			continue
		}

		c.AddMutation(m)

		if m.Detected {
			detected++
		} else {
			undetected++
		}
	}

	if detected+undetected > 0 {
		c.addIfSet(MustCoverage(Mutation, detected, undetected))
	}

	return c, true
}

func (n *Node) filterFileByIndirectChanges() (*Node, bool) {
	if len(n.indirect) == 0 {
		return nil, false
	}

	c := NewFile(n.name, n.relativePath)

	lineCoverage := EmptyCoverage(Line)
	branchCoverage := EmptyCoverage(Branch)

	for line, delta := range n.indirect {
		current := n.branchCoverage(line)
		if !current.IsSet() {
			current = n.lineCoverage(line)
		}

		switch {
		case delta > 0:
			if delta == current.Covered() {
				lineCoverage, _ = lineCoverage.Add(MustCoverage(Line, 1, 0))
			}

			if current.Total() > 1 {
				branchCoverage, _ = branchCoverage.Add(MustCoverage(Branch, delta, 0))
			}
		case delta < 0:
			if current.Covered() == 0 {
				lineCoverage, _ = lineCoverage.Add(MustCoverage(Line, 0, 1))
			}

			if current.Total() > 1 {
				branchCoverage, _ = branchCoverage.Add(MustCoverage(Branch, 0, -delta))
			}
		}
	}

	c.addIfSet(lineCoverage)
	c.addIfSet(branchCoverage)

	return c, true
}

func (n *Node) addIfSet(v Value) {
	if v.IsSet() {
		n.replaceValue(v)
	}
}
