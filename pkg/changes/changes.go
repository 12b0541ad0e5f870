// Package changes computes line changes between two versions of source files
// and attaches them to coverage trees.
package changes

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// EditType classifies a change.
type EditType int

// Edit types.
const (
	Insert EditType = iota
	Replace
	Delete
)

func (t EditType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case Replace:
		return "REPLACE"
	default:
		return "DELETE"
	}
}

// Change is a contiguous range of changed lines. Insert and Replace ranges are
// lines of the new version; Delete ranges are lines of the old version.
type Change struct {
	Type     EditType
	FromLine int
	ToLine   int
}

// Lines returns the line numbers of the range.
func (c Change) Lines() []int {
	lines := make([]int, 0, c.ToLine-c.FromLine+1)
	for line := c.FromLine; line <= c.ToLine; line++ {
		lines = append(lines, line)
	}

	return lines
}

// FileChanges holds the changes of one file and the mapping of unchanged lines.
type FileChanges struct {
	Path    string
	Changes []Change
	// unchanged maps lines of the new version to lines of the old version.
	unchanged map[int]int
}

// ChangesByType returns the changes of one type in file order.
func (fc FileChanges) ChangesByType(t EditType) []Change {
	var out []Change

	for _, c := range fc.Changes {
		if c.Type == t {
			out = append(out, c)
		}
	}

	return out
}

// ModifiedLines returns the lines of the new version that were inserted or replaced.
func (fc FileChanges) ModifiedLines() []int {
	var lines []int

	for _, c := range fc.Changes {
		if c.Type != Delete {
			lines = append(lines, c.Lines()...)
		}
	}

	return lines
}

// OldLine maps an unchanged line of the new version to its line in the old version.
func (fc FileChanges) OldLine(newLine int) (int, bool) {
	old, ok := fc.unchanged[newLine]

	return old, ok
}

// Differ computes line diffs.
type Differ struct {
	// Timeout bounds the diff computation of a single file; zero means no limit.
	Timeout time.Duration
}

// Diff computes the changes between the old and new content of a file.
func (d Differ) Diff(path, before, after string) FileChanges {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = d.Timeout

	src, dst, _ := dmp.DiffLinesToRunes(terminateLastLine(before), terminateLastLine(after))
	diffs := dmp.DiffCleanupMerge(dmp.DiffMainRunes(src, dst, false))

	fc := FileChanges{Path: path, unchanged: make(map[int]int)}
	oldLine, newLine := 1, 1

	var deleted, inserted int

	flush := func() {
		switch {
		case deleted > 0 && inserted > 0:
			fc.Changes = append(fc.Changes, Change{Type: Replace, FromLine: newLine - inserted, ToLine: newLine - 1})
		case inserted > 0:
			fc.Changes = append(fc.Changes, Change{Type: Insert, FromLine: newLine - inserted, ToLine: newLine - 1})
		case deleted > 0:
			fc.Changes = append(fc.Changes, Change{Type: Delete, FromLine: oldLine - deleted, ToLine: oldLine - 1})
		}

		deleted, inserted = 0, 0
	}

	for _, edit := range diffs {
		count := utf8.RuneCountInString(edit.Text)

		switch edit.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			for i := range count {
				fc.unchanged[newLine+i] = oldLine + i
			}

			oldLine += count
			newLine += count
		case diffmatchpatch.DiffDelete:
			deleted += count
			oldLine += count
		case diffmatchpatch.DiffInsert:
			inserted += count
			newLine += count
		}
	}

	flush()

	return fc
}

// Diff computes the changes between two versions with the default Differ.
func Diff(path, before, after string) FileChanges {
	return Differ{}.Diff(path, before, after)
}

func terminateLastLine(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}

	return s + "\n"
}

// NewFile returns the changes of a file without previous version: every line is inserted.
func NewFile(path, content string) FileChanges {
	lines := strings.Count(terminateLastLine(content), "\n")

	fc := FileChanges{Path: path, unchanged: map[int]int{}}
	if lines > 0 {
		fc.Changes = []Change{{Type: Insert, FromLine: 1, ToLine: lines}}
	}

	return fc
}
