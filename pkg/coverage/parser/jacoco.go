package parser

import (
	"fmt"
	"io"
	"path"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

type jacocoReport struct {
	Name     *string         `xml:"name,attr"`
	Groups   []jacocoGroup   `xml:"group"`
	Packages []jacocoPackage `xml:"package"`
}

type jacocoGroup struct {
	Name     string          `xml:"name,attr"`
	Groups   []jacocoGroup   `xml:"group"`
	Packages []jacocoPackage `xml:"package"`
}

type jacocoPackage struct {
	Name        string             `xml:"name,attr"`
	Classes     []jacocoClass      `xml:"class"`
	SourceFiles []jacocoSourceFile `xml:"sourcefile"`
}

type jacocoClass struct {
	Name           string          `xml:"name,attr"`
	SourceFileName string          `xml:"sourcefilename,attr"`
	Methods        []jacocoMethod  `xml:"method"`
	Counters       []jacocoCounter `xml:"counter"`
}

type jacocoMethod struct {
	Name     string          `xml:"name,attr"`
	Desc     string          `xml:"desc,attr"`
	Line     string          `xml:"line,attr"`
	Counters []jacocoCounter `xml:"counter"`
}

type jacocoCounter struct {
	Type    string `xml:"type,attr"`
	Missed  string `xml:"missed,attr"`
	Covered string `xml:"covered,attr"`
}

type jacocoSourceFile struct {
	Name  string       `xml:"name,attr"`
	Lines []jacocoLine `xml:"line"`
}

type jacocoLine struct {
	Nr string `xml:"nr,attr"`
	Mi string `xml:"mi,attr"`
	Ci string `xml:"ci,attr"`
	Mb string `xml:"mb,attr"`
	Cb string `xml:"cb,attr"`
}

// JacocoParser reads JaCoCo XML reports. Groups become nested modules.
type JacocoParser struct{}

// Parse implements Parser.
func (JacocoParser) Parse(r io.Reader, fileName string) (*coverage.Node, error) {
	var report jacocoReport

	err := decodeXML(r, fileName, &report)
	if err != nil {
		return nil, err
	}

	if report.Name == nil {
		return nil, malformed(fileName, fmt.Errorf("%w: 'name' of element 'report'", errMissingAttribute))
	}

	root := coverage.NewModule(*report.Name)

	err = readJacocoModule(root, report.Groups, report.Packages)
	if err != nil {
		return nil, malformed(fileName, err)
	}

	if !root.HasChildren() {
		return nil, malformed(fileName, ErrNoCoverage)
	}

	return root, nil
}

func readJacocoModule(module *coverage.Node, groups []jacocoGroup, packages []jacocoPackage) error {
	for _, p := range packages {
		err := readJacocoPackage(module, p)
		if err != nil {
			return err
		}
	}

	for _, g := range groups {
		sub := coverage.NewModule(g.Name)

		err := readJacocoModule(sub, g.Groups, g.Packages)
		if err != nil {
			return err
		}

		module.AddChild(sub)
	}

	return nil
}

func readJacocoPackage(module *coverage.Node, p jacocoPackage) error {
	pkg := module.FindOrCreatePackage(p.Name)

	for _, c := range p.Classes {
		name, err := required("class", "name", c.Name)
		if err != nil {
			return err
		}

		parent := pkg
		if c.SourceFileName != "" {
			parent = pkg.FindOrCreateFile(c.SourceFileName, jacocoPath(p.Name, c.SourceFileName))
		}

		class := parent.FindOrCreateClass(name)

		err = addJacocoCounters(class, c.Counters)
		if err != nil {
			return err
		}

		for _, m := range c.Methods {
			err := readJacocoMethod(class, m)
			if err != nil {
				return err
			}
		}
	}

	for _, sf := range p.SourceFiles {
		name, err := required("sourcefile", "name", sf.Name)
		if err != nil {
			return err
		}

		file := pkg.FindOrCreateFile(name, jacocoPath(p.Name, name))

		for _, l := range sf.Lines {
			err := readJacocoLine(file, l)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func jacocoPath(packageName, fileName string) string {
	return relativePath(path.Join(packageName, fileName))
}

func readJacocoMethod(class *coverage.Node, m jacocoMethod) error {
	name, err := required("method", "name", m.Name)
	if err != nil {
		return err
	}

	desc, err := required("method", "desc", m.Desc)
	if err != nil {
		return err
	}

	line, err := optionalAtoi("method", "line", m.Line)
	if err != nil {
		return err
	}

	method := coverage.NewMethod(name, desc, line)

	err = addJacocoCounters(method, m.Counters)
	if err != nil {
		return err
	}

	class.AddChild(method)

	return nil
}

// readJacocoLine stores the counters of a source line: plain lines count as one
// covered or missed item, lines with branches count their branches.
func readJacocoLine(file *coverage.Node, l jacocoLine) error {
	nr, err := atoi("line", "nr", l.Nr)
	if err != nil {
		return err
	}

	counters := make([]int, 0, 3)

	for _, attr := range []struct{ name, value string }{{"ci", l.Ci}, {"mb", l.Mb}, {"cb", l.Cb}} {
		n, err := optionalAtoi("line", attr.name, attr.value)
		if err != nil {
			return err
		}

		counters = append(counters, n)
	}

	coveredInstructions, missedBranches, coveredBranches := counters[0], counters[1], counters[2]

	if missedBranches+coveredBranches == 0 {
		if coveredInstructions > 0 {
			file.AddCounters(nr, 1, 0)
		} else {
			file.AddCounters(nr, 0, 1)
		}

		return nil
	}

	file.AddCounters(nr, coveredBranches, missedBranches)

	return nil
}

func addJacocoCounters(node *coverage.Node, counters []jacocoCounter) error {
	for _, c := range counters {
		var metric coverage.Metric

		switch c.Type {
		case "INSTRUCTION":
			metric = coverage.Instruction
		case "LINE":
			metric = coverage.Line
		case "BRANCH":
			metric = coverage.Branch
		case "COMPLEXITY":
			metric = coverage.Complexity
		default:
			continue
		}

		covered, err := atoi("counter", "covered", c.Covered)
		if err != nil {
			return err
		}

		missed, err := atoi("counter", "missed", c.Missed)
		if err != nil {
			return err
		}

		var value coverage.Value

		if metric == coverage.Complexity {
			value = coverage.NewInteger(coverage.Complexity, covered+missed)
		} else {
			value, err = coverage.NewCoverage(metric, covered, missed)
			if err != nil {
				return err
			}
		}

		err = node.AccumulateValue(value)
		if err != nil {
			return err
		}
	}

	return nil
}
