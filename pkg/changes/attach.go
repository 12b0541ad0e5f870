package changes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// AttachChangedLines marks the inserted and replaced lines of every changed
// file as modified lines of the matching file node. It returns the number of
// file nodes that received changes.
func AttachChangedLines(root *coverage.Node, changes map[string]FileChanges) int {
	attached := 0

	for _, file := range root.AllFiles() {
		fc, ok := changes[file.RelativePath()]
		if !ok {
			continue
		}

		lines := fc.ModifiedLines()
		if len(lines) == 0 {
			continue
		}

		file.AddModifiedLines(lines...)
		attached++
	}

	return attached
}

// AttachIndirectChanges records, for every unmodified line of the current tree,
// the change of its covered counter against the same line in the reference
// tree. Lines of changed files are mapped to their old line numbers; lines
// without a counterpart are skipped.
func AttachIndirectChanges(root, reference *coverage.Node, changes map[string]FileChanges) {
	for _, file := range root.AllFiles() {
		previous, ok := reference.FindFile(file.RelativePath())
		if !ok {
			continue
		}

		fc, changed := changes[file.RelativePath()]

		for _, line := range file.LinesWithCoverage() {
			if file.HasModifiedLine(line) {
				continue
			}

			oldLine := line
			if changed {
				oldLine, ok = fc.OldLine(line)
				if !ok {
					continue
				}
			}

			before, ok := previous.Counters(oldLine)
			if !ok {
				continue
			}

			now, _ := file.Counters(line)
			if delta := now.Covered - before.Covered; delta != 0 {
				file.AddIndirectCoverageChange(line, delta)
			}
		}
	}
}

// DiffDirs diffs the given relative paths between a reference and a current
// source directory. Files missing in the reference are entirely new; files
// missing in the current directory are skipped. Identical files are omitted.
func DiffDirs(ctx context.Context, d Differ, referenceDir, currentDir string, paths []string) (map[string]FileChanges, error) {
	result := make(map[string]FileChanges)

	for _, path := range paths {
		err := ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("diff sources: %w", err)
		}

		after, err := os.ReadFile(filepath.Join(currentDir, filepath.FromSlash(path)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read current source %s: %w", path, err)
		}

		before, err := os.ReadFile(filepath.Join(referenceDir, filepath.FromSlash(path)))
		if errors.Is(err, fs.ErrNotExist) {
			result[path] = NewFile(path, string(after))

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read reference source %s: %w", path, err)
		}

		fc := d.Diff(path, string(before), string(after))
		if len(fc.Changes) > 0 {
			result[path] = fc
		}
	}

	return result, nil
}
