package coverage

import (
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strings"
)

// Tree errors.
var (
	ErrDuplicateValue    = errors.New("node already has a value for metric")
	ErrIncompatibleNodes = errors.New("nodes of different kind or name cannot be merged")
	ErrEmptyMerge        = errors.New("cannot merge an empty list of nodes")
)

// EmptyName is used for unnamed modules and packages.
const EmptyName = "-"

// ContainerName is the name of the synthetic root that wraps incompatible trees.
const ContainerName = "Container"

// LineCounters holds the covered and missed items of a single source line.
// A plain line has a total of one; a line with branches has one item per branch.
type LineCounters struct {
	Covered int `json:"covered"`
	Missed  int `json:"missed"`
}

// Total returns the number of items on the line.
func (c LineCounters) Total() int { return c.Covered + c.Missed }

// Node is one element of the code hierarchy. A node exclusively owns its children;
// the parent pointer is a non-owning back reference.
type Node struct {
	kind     Metric
	name     string
	parent   *Node
	children []*Node
	values   []Value

	// Module details.
	sources []string

	// Method details.
	signature  string
	lineNumber int

	// File details.
	relativePath  string
	lines         map[int]LineCounters
	mutations     []Mutant
	modifiedLines map[int]struct{}
	indirect      map[int]int
}

// NewNode creates a node of the given element kind. Kinds other than element
// kinds panic.
func NewNode(kind Metric, name string) *Node {
	if !kind.IsElement() {
		panic(fmt.Sprintf("coverage: %s is not an element kind", kind))
	}

	return &Node{kind: kind, name: name}
}

// NewContainer creates a container node.
func NewContainer(name string) *Node { return NewNode(Container, name) }

// NewModule creates a module node; a blank name becomes EmptyName.
func NewModule(name string) *Node {
	if strings.TrimSpace(name) == "" {
		name = EmptyName
	}

	return NewNode(Module, name)
}

// NewPackage creates a package node. Path separators are normalized to dots and a
// blank name becomes EmptyName.
func NewPackage(name string) *Node {
	return NewNode(Package, NormalizePackageName(name))
}

// NewFile creates a file node with the given base name and path relative to a source folder.
func NewFile(name, relativePath string) *Node {
	n := NewNode(File, name)
	n.relativePath = relativePath

	return n
}

// NewClass creates a class node.
func NewClass(name string) *Node { return NewNode(Class, name) }

// NewMethod creates a method node.
func NewMethod(name, signature string, lineNumber int) *Node {
	n := NewNode(Method, name)
	n.signature = signature
	n.lineNumber = lineNumber

	return n
}

// NormalizePackageName converts '/' and '\' separators into dots.
func NormalizePackageName(name string) string {
	normalized := strings.NewReplacer("/", ".", "\\", ".").Replace(strings.TrimSpace(name))
	if normalized == "" {
		return EmptyName
	}

	return normalized
}

// Kind returns the element kind of the node.
func (n *Node) Kind() Metric { return n.kind }

// Name returns the name of the node.
func (n *Node) Name() string { return n.name }

// Parent returns the parent, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// ParentName returns the name of the parent or EmptyName for a root.
func (n *Node) ParentName() string {
	if n.parent == nil {
		return EmptyName
	}

	return n.parent.name
}

// Path returns the location of the node: the relative path for files, otherwise the
// names from the root down to this node joined by slashes.
func (n *Node) Path() string {
	if n.kind == File && n.relativePath != "" {
		return n.relativePath
	}

	var names []string

	for node := n; node != nil; node = node.parent {
		if node.kind != Container {
			names = append(names, node.name)
		}
	}

	slices.Reverse(names)

	return strings.Join(names, "/")
}

// Children returns the direct children in order.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// HasChildren reports whether the node has any children.
func (n *Node) HasChildren() bool { return len(n.children) > 0 }

// AddChild attaches child to this node. A child that already has a parent panics:
// every node is owned by exactly one parent.
func (n *Node) AddChild(child *Node) {
	if child.parent != nil {
		panic(fmt.Sprintf("coverage: node %q is already owned by %q", child.name, child.parent.name))
	}

	child.parent = n
	n.children = append(n.children, child)
}

// Signature returns the signature of a method node.
func (n *Node) Signature() string { return n.signature }

// LineNumber returns the declaration line of a method node.
func (n *Node) LineNumber() int { return n.lineNumber }

// Sources returns the source folders of a module node.
func (n *Node) Sources() []string { return slices.Clone(n.sources) }

// AddSource registers a source folder of a module node.
func (n *Node) AddSource(source string) {
	if source == "" || slices.Contains(n.sources, source) {
		return
	}

	n.sources = append(n.sources, source)
}

// Values returns the values stored on this node, without aggregated ones.
func (n *Node) Values() []Value { return slices.Clone(n.values) }

// AddValue stores a measured value on this node.
func (n *Node) AddValue(v Value) error {
	if n.ownValue(v.metric) >= 0 {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateValue, v.metric, n)
	}

	n.values = append(n.values, v)

	return nil
}

// AccumulateValue adds v to the value of the same metric stored on this node, or
// stores v when there is none yet.
func (n *Node) AccumulateValue(v Value) error {
	i := n.ownValue(v.metric)
	if i < 0 {
		n.values = append(n.values, v)

		return nil
	}

	sum, err := n.values[i].Add(v)
	if err != nil {
		return err
	}

	n.values[i] = sum

	return nil
}

func (n *Node) replaceValue(v Value) {
	if i := n.ownValue(v.metric); i >= 0 {
		n.values[i] = v

		return
	}

	n.values = append(n.values, v)
}

func (n *Node) ownValue(metric Metric) int {
	return slices.IndexFunc(n.values, func(v Value) bool { return v.metric == metric })
}

// Value computes the value of the metric for this node. Values are derived on
// every call from the node's own values and its subtree, so they never go stale.
// The result is absent when nothing below the node measures the metric.
func (n *Node) Value(metric Metric) (Value, bool) {
	switch {
	case metric.IsElement():
		return n.elementValue(metric)
	case metric == LOC:
		line, ok := n.Value(Line)
		if !ok {
			return Value{}, false
		}

		return NewInteger(LOC, line.Total()), true
	case metric == ComplexityDensity:
		return n.densityValue()
	case metric == ComplexityMaximum:
		return n.maximumComplexity()
	default:
		if i := n.ownValue(metric); i >= 0 {
			return n.values[i], true
		}

		return n.sumOfChildren(metric)
	}
}

func (n *Node) sumOfChildren(metric Metric) (Value, bool) {
	var (
		sum   Value
		found bool
	)

	for _, child := range n.children {
		v, ok := child.Value(metric)
		if !ok {
			continue
		}

		if !found {
			sum, found = v, true

			continue
		}

		// Both values carry the same metric, so Add cannot fail.
		sum, _ = sum.Add(v)
	}

	return sum, found
}

// elementValue counts elements of the given kind: a node of that kind counts as
// covered when any instruction, line or branch below it is covered.
func (n *Node) elementValue(kind Metric) (Value, bool) {
	sum, found := n.sumOfChildren(kind)
	if n.kind != kind {
		return sum, found
	}

	own := MustCoverage(kind, 0, 1)
	if n.hasCoverage() {
		own = MustCoverage(kind, 1, 0)
	}

	if !found {
		return own, true
	}

	total, _ := own.Add(sum)

	return total, true
}

func (n *Node) hasCoverage() bool {
	for _, metric := range []Metric{Instruction, Line, Branch} {
		if v, ok := n.Value(metric); ok && v.Covered() > 0 {
			return true
		}
	}

	return false
}

func (n *Node) densityValue() (Value, bool) {
	loc, ok := n.Value(LOC)
	if !ok || loc.Int() <= 0 {
		return Value{}, false
	}

	complexity, ok := n.Value(Complexity)
	if !ok {
		return Value{}, false
	}

	return NewFraction(ComplexityDensity, int64(complexity.Int()), int64(loc.Int())), true
}

func (n *Node) maximumComplexity() (Value, bool) {
	if n.kind == Method {
		complexity, ok := n.Value(Complexity)
		if !ok {
			return Value{}, false
		}

		return NewInteger(ComplexityMaximum, complexity.Int()), true
	}

	var (
		maximum Value
		found   bool
	)

	for _, child := range n.children {
		v, ok := child.maximumComplexity()
		if !ok {
			continue
		}

		if !found || v.Int() > maximum.Int() {
			maximum, found = v, true
		}
	}

	return maximum, found
}

// Metrics returns the metrics that have a value at this node, in declaration order.
// Container is never reported.
func (n *Node) Metrics() []Metric {
	var metrics []Metric

	for _, m := range Metrics() {
		if m == Container {
			continue
		}

		if _, ok := n.Value(m); ok {
			metrics = append(metrics, m)
		}
	}

	return metrics
}

// AggregateValues returns the values of all metrics available at this node.
func (n *Node) AggregateValues() []Value {
	metrics := n.Metrics()
	values := make([]Value, 0, len(metrics))

	for _, m := range metrics {
		v, _ := n.Value(m)
		values = append(values, v)
	}

	return values
}

// ComputeDelta returns the difference of every metric available in both this node and the reference.
func (n *Node) ComputeDelta(reference *Node) map[Metric]*big.Rat {
	deltas := make(map[Metric]*big.Rat)

	for _, m := range n.Metrics() {
		current, _ := n.Value(m)

		previous, ok := reference.Value(m)
		if !ok {
			continue
		}

		delta, err := current.Delta(previous)
		if err != nil {
			continue
		}

		deltas[m] = delta
	}

	return deltas
}

// Find returns the first node of the given kind and name in pre-order, including this node.
// Files also match by relative path.
func (n *Node) Find(kind Metric, name string) (*Node, bool) {
	var found *Node

	n.walk(func(node *Node) bool {
		if node.kind == kind && (node.name == name || (kind == File && node.relativePath == name)) {
			found = node

			return false
		}

		return true
	})

	return found, found != nil
}

// FindFile returns the file node with the given relative path or name.
func (n *Node) FindFile(path string) (*Node, bool) { return n.Find(File, path) }

// FindPackage returns the package node with the given name.
func (n *Node) FindPackage(name string) (*Node, bool) {
	return n.Find(Package, NormalizePackageName(name))
}

// FindClass returns the class node with the given name.
func (n *Node) FindClass(name string) (*Node, bool) { return n.Find(Class, name) }

// FindMethod returns the method node with the given name and signature.
func (n *Node) FindMethod(name, signature string) (*Node, bool) {
	var found *Node

	n.walk(func(node *Node) bool {
		if node.kind == Method && node.name == name && node.signature == signature {
			found = node

			return false
		}

		return true
	})

	return found, found != nil
}

// All returns every node of the given kind in pre-order, including this node.
func (n *Node) All(kind Metric) []*Node {
	var nodes []*Node

	n.walk(func(node *Node) bool {
		if node.kind == kind {
			nodes = append(nodes, node)
		}

		return true
	})

	return nodes
}

// AllFiles returns every file node below and including this node.
func (n *Node) AllFiles() []*Node { return n.All(File) }

// Files returns the relative paths of every file below this node.
func (n *Node) Files() []string {
	files := n.AllFiles()
	paths := make([]string, 0, len(files))

	for _, f := range files {
		paths = append(paths, f.relativePath)
	}

	return paths
}

// child returns the direct child with the same identity as candidate.
func (n *Node) child(candidate *Node) *Node {
	for _, c := range n.children {
		if c.sameIdentity(candidate) {
			return c
		}
	}

	return nil
}

func (n *Node) sameIdentity(other *Node) bool {
	if n.kind != other.kind || n.name != other.name {
		return false
	}

	switch n.kind {
	case Method:
		return n.signature == other.signature
	case File:
		return n.relativePath == other.relativePath
	default:
		return true
	}
}

// FindOrCreateChild returns the direct child of the given kind and name, creating it if necessary.
func (n *Node) FindOrCreateChild(kind Metric, name string) *Node {
	candidate := NewNode(kind, name)
	if existing := n.child(candidate); existing != nil {
		return existing
	}

	n.AddChild(candidate)

	return candidate
}

// FindOrCreatePackage returns the package child with the normalized name.
func (n *Node) FindOrCreatePackage(name string) *Node {
	return n.FindOrCreateChild(Package, NormalizePackageName(name))
}

// FindOrCreateFile returns the file child with the given name and relative path.
func (n *Node) FindOrCreateFile(name, relativePath string) *Node {
	candidate := NewFile(name, relativePath)
	if existing := n.child(candidate); existing != nil {
		return existing
	}

	n.AddChild(candidate)

	return candidate
}

// FindOrCreateClass returns the class child with the given name.
func (n *Node) FindOrCreateClass(name string) *Node {
	return n.FindOrCreateChild(Class, name)
}

// walk visits the subtree in pre-order until visit returns false.
func (n *Node) walk(visit func(*Node) bool) bool {
	if !visit(n) {
		return false
	}

	for _, c := range n.children {
		if !c.walk(visit) {
			return false
		}
	}

	return true
}

// Copy returns a copy of this node without parent, children, and values.
func (n *Node) Copy() *Node {
	c := &Node{
		kind:         n.kind,
		name:         n.name,
		sources:      slices.Clone(n.sources),
		signature:    n.signature,
		lineNumber:   n.lineNumber,
		relativePath: n.relativePath,
	}

	if n.kind == File {
		c.lines = maps.Clone(n.lines)
		c.mutations = slices.Clone(n.mutations)
		c.modifiedLines = maps.Clone(n.modifiedLines)
		c.indirect = maps.Clone(n.indirect)
	}

	return c
}

// CopyTree returns a deep copy of the subtree rooted at this node. The copy has no parent.
func (n *Node) CopyTree() *Node {
	c := n.Copy()
	c.values = slices.Clone(n.values)

	for _, child := range n.children {
		c.AddChild(child.CopyTree())
	}

	return c
}

// Equal reports structural equality of both subtrees.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}

	if !n.sameIdentity(other) || n.lineNumber != other.lineNumber ||
		!slices.Equal(n.sources, other.sources) ||
		!equalValues(n.values, other.values) ||
		!maps.Equal(n.lines, other.lines) ||
		!maps.Equal(n.modifiedLines, other.modifiedLines) ||
		!maps.Equal(n.indirect, other.indirect) ||
		!slices.Equal(n.mutations, other.mutations) ||
		len(n.children) != len(other.children) {
		return false
	}

	for i := range n.children {
		if !n.children[i].Equal(other.children[i]) {
			return false
		}
	}

	return true
}

func equalValues(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}

	for _, v := range a {
		i := slices.IndexFunc(b, func(o Value) bool { return o.metric == v.metric })
		if i < 0 || !b[i].Equal(v) {
			return false
		}
	}

	return true
}

func (n *Node) String() string {
	return fmt.Sprintf("[%s] %s <%d>", n.kind, n.name, len(n.children))
}
