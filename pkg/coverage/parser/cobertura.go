package parser

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

var branchPattern = regexp.MustCompile(`\((\d+)/(\d+)\)\s*$`)

type coberturaReport struct {
	Sources  []string           `xml:"sources>source"`
	Packages []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name    *string          `xml:"name,attr"`
	Classes []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name       string            `xml:"name,attr"`
	FileName   string            `xml:"filename,attr"`
	Complexity string            `xml:"complexity,attr"`
	Methods    []coberturaMethod `xml:"methods>method"`
	Lines      []coberturaLine   `xml:"lines>line"`
}

type coberturaMethod struct {
	Name       string          `xml:"name,attr"`
	Signature  *string         `xml:"signature,attr"`
	Complexity string          `xml:"complexity,attr"`
	Lines      []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number            string `xml:"number,attr"`
	Hits              string `xml:"hits,attr"`
	Branch            string `xml:"branch,attr"`
	ConditionCoverage string `xml:"condition-coverage,attr"`
}

// CoberturaParser reads Cobertura XML reports.
type CoberturaParser struct{}

// Parse implements Parser.
func (CoberturaParser) Parse(r io.Reader, fileName string) (*coverage.Node, error) {
	var report coberturaReport

	err := decodeXML(r, fileName, &report)
	if err != nil {
		return nil, err
	}

	if len(report.Packages) == 0 {
		return nil, malformed(fileName, ErrNoCoverage)
	}

	root := coverage.NewModule(coverage.EmptyName)

	for _, source := range report.Sources {
		root.AddSource(relativePath(strings.TrimSpace(source)))
	}

	for _, p := range report.Packages {
		if p.Name == nil {
			return nil, malformed(fileName, fmt.Errorf("%w: 'name' of element 'package'", errMissingAttribute))
		}

		pkg := root.FindOrCreatePackage(*p.Name)

		for _, c := range p.Classes {
			err := readCoberturaClass(pkg, c)
			if err != nil {
				return nil, malformed(fileName, err)
			}
		}
	}

	return root, nil
}

func readCoberturaClass(pkg *coverage.Node, c coberturaClass) error {
	name, err := required("class", "name", c.Name)
	if err != nil {
		return err
	}

	path, err := required("class", "filename", c.FileName)
	if err != nil {
		return err
	}

	file := pkg.FindOrCreateFile(baseName(path), relativePath(path))
	class := file.FindOrCreateClass(name)

	err = addCoberturaValues(class, c.Complexity, c.Lines, file)
	if err != nil {
		return err
	}

	for _, m := range c.Methods {
		methodName, err := required("method", "name", m.Name)
		if err != nil {
			return err
		}

		if m.Signature == nil {
			return fmt.Errorf("%w: 'signature' of element 'method'", errMissingAttribute)
		}

		method := coverage.NewMethod(methodName, *m.Signature, firstLine(m.Lines))

		err = addCoberturaValues(method, m.Complexity, m.Lines, nil)
		if err != nil {
			return err
		}

		class.AddChild(method)
	}

	return nil
}

// addCoberturaValues stores the line and branch coverage of the lines on node. Classes
// listed more than once accumulate their values. When file is set the per-line
// counters are recorded there as well.
func addCoberturaValues(node *coverage.Node, complexity string, lines []coberturaLine, file *coverage.Node) error {
	if complexity != "" {
		err := node.AccumulateValue(coverage.NewInteger(coverage.Complexity, readComplexity(complexity)))
		if err != nil {
			return err
		}
	}

	lineCoverage := coverage.EmptyCoverage(coverage.Line)
	branchCoverage := coverage.EmptyCoverage(coverage.Branch)

	for _, l := range lines {
		number, err := atoi("line", "number", l.Number)
		if err != nil {
			return err
		}

		var covered, missed int

		if strings.EqualFold(l.Branch, "true") {
			conditions, err := required("line", "condition-coverage", l.ConditionCoverage)
			if err != nil {
				return err
			}

			covered, missed = readBranchCoverage(conditions)
			branchCoverage, _ = branchCoverage.Add(coverage.MustCoverage(coverage.Branch, covered, missed))
		} else {
			hits, err := atoi("line", "hits", l.Hits)
			if err != nil {
				return err
			}

			covered, missed = 0, 1
			if hits > 0 {
				covered, missed = 1, 0
			}

			lineCoverage, _ = lineCoverage.Add(coverage.MustCoverage(coverage.Line, covered, missed))
		}

		if file != nil && covered+missed > 0 {
			file.AddCounters(number, covered, missed)
		}
	}

	for _, v := range []coverage.Value{lineCoverage, branchCoverage} {
		if !v.IsSet() {
			continue
		}

		err := node.AccumulateValue(v)
		if err != nil {
			return err
		}
	}

	return nil
}

// readBranchCoverage parses "50% (1/2)"; unreadable values count as no branches.
func readBranchCoverage(conditionCoverage string) (covered, missed int) {
	match := branchPattern.FindStringSubmatch(conditionCoverage)
	if match == nil {
		return 0, 0
	}

	c, _ := strconv.Atoi(match[1])
	t, _ := strconv.Atoi(match[2])

	if c > t {
		return t, 0
	}

	return c, t - c
}

// readComplexity rounds float complexities; unreadable values are zero.
func readComplexity(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	return int(math.Round(f))
}

func firstLine(lines []coberturaLine) int {
	for _, l := range lines {
		if n, err := strconv.Atoi(l.Number); err == nil {
			return n
		}
	}

	return 0
}
