package parser

import (
	"io"
	"path"

	"golang.org/x/tools/cover"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// GoCoverParser reads profiles written by "go test -coverprofile". Each Go package
// becomes a package node and each source file a file node with line coverage.
type GoCoverParser struct{}

// Parse implements Parser.
func (GoCoverParser) Parse(r io.Reader, fileName string) (*coverage.Node, error) {
	profiles, err := cover.ParseProfilesFromReader(r)
	if err != nil {
		return nil, malformed(fileName, err)
	}

	if len(profiles) == 0 {
		return nil, malformed(fileName, ErrNoCoverage)
	}

	root := coverage.NewModule(coverage.EmptyName)

	for _, p := range profiles {
		importPath := path.Dir(p.FileName)
		file := root.FindOrCreatePackage(importPath).FindOrCreateFile(path.Base(p.FileName), p.FileName)

		lines := blockLineCoverage(p.Blocks)
		if len(lines) == 0 {
			continue
		}

		var covered, missed int

		for line, hit := range lines {
			if hit {
				covered++

				file.AddCounters(line, 1, 0)
			} else {
				missed++

				file.AddCounters(line, 0, 1)
			}
		}

		err := file.AccumulateValue(coverage.MustCoverage(coverage.Line, covered, missed))
		if err != nil {
			return nil, malformed(fileName, err)
		}
	}

	return root, nil
}

// blockLineCoverage maps every line spanned by a block with statements to whether
// any block covering it was executed.
func blockLineCoverage(blocks []cover.ProfileBlock) map[int]bool {
	lines := make(map[int]bool)

	for _, b := range blocks {
		if b.NumStmt == 0 {
			continue
		}

		for line := b.StartLine; line <= b.EndLine; line++ {
			lines[line] = lines[line] || b.Count > 0
		}
	}

	return lines
}
