package coverage

import (
	"cmp"
	"fmt"
	"slices"
)

// Merge returns a new tree combining this tree and other. Both roots must have the
// same kind and name. Children are matched by identity and merged recursively;
// children present on one side only are copied. Values of nodes with children are
// summed, values of leaves are combined with Max, so merging identical reports is
// idempotent at the leaves. Neither input is modified.
//
// Children of the result are sorted by kind and name, which makes the result
// independent of the merge order.
func (n *Node) Merge(other *Node) (*Node, error) {
	if !n.sameIdentity(other) {
		return nil, fmt.Errorf("%w: %s and %s", ErrIncompatibleNodes, n, other)
	}

	merged := n.CopyTree()

	err := merged.mergeFrom(other)
	if err != nil {
		return nil, err
	}

	merged.sortTree()

	return merged, nil
}

// MergeAll merges a list of trees. Roots sharing kind and name are merged pairwise;
// otherwise all roots are placed below a new Container node.
func MergeAll(nodes []*Node) (*Node, error) {
	switch len(nodes) {
	case 0:
		return nil, ErrEmptyMerge
	case 1:
		return nodes[0], nil
	}

	if !haveSameIdentity(nodes) {
		container := NewContainer(ContainerName)
		for _, n := range nodes {
			container.AddChild(n.CopyTree())
		}

		container.sortTree()

		return container, nil
	}

	merged := nodes[0]

	for _, n := range nodes[1:] {
		next, err := merged.Merge(n)
		if err != nil {
			return nil, err
		}

		merged = next
	}

	return merged, nil
}

func haveSameIdentity(nodes []*Node) bool {
	for _, n := range nodes[1:] {
		if !n.sameIdentity(nodes[0]) {
			return false
		}
	}

	return true
}

func (n *Node) mergeFrom(other *Node) error {
	if n.kind == File {
		n.mergeFileDetails(other)
	}

	for _, source := range other.sources {
		n.AddSource(source)
	}

	slices.Sort(n.sources)

	if n.signature == "" {
		n.signature = other.signature
	}

	if n.lineNumber == 0 {
		n.lineNumber = other.lineNumber
	}

	for _, otherChild := range other.children {
		existing := n.child(otherChild)
		if existing == nil {
			n.AddChild(otherChild.CopyTree())

			continue
		}

		err := existing.mergeFrom(otherChild)
		if err != nil {
			return err
		}
	}

	return n.mergeValues(other.values)
}

func (n *Node) mergeValues(others []Value) error {
	for _, ov := range others {
		i := n.ownValue(ov.metric)
		if i < 0 {
			n.values = append(n.values, ov)

			continue
		}

		var (
			merged Value
			err    error
		)

		if n.HasChildren() {
			merged, err = n.values[i].Add(ov)
		} else {
			merged, err = n.values[i].Max(ov)
		}

		if err != nil {
			return fmt.Errorf("merge %s: %w", n, err)
		}

		n.values[i] = merged
	}

	slices.SortFunc(n.values, func(a, b Value) int { return cmp.Compare(a.metric, b.metric) })

	return nil
}

func (n *Node) sortTree() {
	slices.SortStableFunc(n.children, compareNodes)

	for _, c := range n.children {
		c.sortTree()
	}
}

func compareNodes(a, b *Node) int {
	return cmp.Or(
		cmp.Compare(a.kind, b.kind),
		cmp.Compare(a.name, b.name),
		cmp.Compare(a.relativePath, b.relativePath),
		cmp.Compare(a.signature, b.signature),
	)
}
