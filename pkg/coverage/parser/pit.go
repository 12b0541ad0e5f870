package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

type pitReport struct {
	Mutations []pitMutation `xml:"mutation"`
}

type pitMutation struct {
	Detected          string `xml:"detected,attr"`
	Status            string `xml:"status,attr"`
	SourceFile        string `xml:"sourceFile"`
	MutatedClass      string `xml:"mutatedClass"`
	MutatedMethod     string `xml:"mutatedMethod"`
	MethodDescription string `xml:"methodDescription"`
	LineNumber        string `xml:"lineNumber"`
	Mutator           string `xml:"mutator"`
	KillingTest       string `xml:"killingTest"`
	Description       string `xml:"description"`
}

// PitParser reads PIT mutation testing reports. Line coverage of each file is
// derived from its mutations.
type PitParser struct{}

// Parse implements Parser.
func (PitParser) Parse(r io.Reader, fileName string) (*coverage.Node, error) {
	var report pitReport

	err := decodeXML(r, fileName, &report)
	if err != nil {
		return nil, err
	}

	if len(report.Mutations) == 0 {
		return nil, malformed(fileName, fmt.Errorf("%w: no mutations", ErrNoCoverage))
	}

	root := coverage.NewModule(coverage.EmptyName)

	for _, m := range report.Mutations {
		err := addMutation(root, m)
		if err != nil {
			return nil, malformed(fileName, err)
		}
	}

	for _, file := range root.AllFiles() {
		err := collectMutationLineCoverage(file)
		if err != nil {
			return nil, malformed(fileName, err)
		}
	}

	return root, nil
}

func addMutation(root *coverage.Node, m pitMutation) error {
	status, err := required("mutation", "status", m.Status)
	if err != nil {
		return err
	}

	detected, err := strconv.ParseBool(m.Detected)
	if err != nil {
		return fmt.Errorf("%w: 'detected' of element 'mutation' is %q", errInvalidAttribute, m.Detected)
	}

	sourceFile, err := required("mutation", "sourceFile", strings.TrimSpace(m.SourceFile))
	if err != nil {
		return err
	}

	mutatedClass := strings.TrimSpace(m.MutatedClass)

	line, err := atoi("mutation", "lineNumber", m.LineNumber)
	if err != nil {
		return err
	}

	packageName, className := splitClassName(mutatedClass)

	relative := sourceFile
	if packageName != "" {
		relative = strings.ReplaceAll(packageName, ".", "/") + "/" + sourceFile
	}

	file := root.FindOrCreatePackage(packageName).FindOrCreateFile(sourceFile, relative)
	class := file.FindOrCreateClass(className)

	methodName := strings.TrimSpace(m.MutatedMethod)
	signature := strings.TrimSpace(m.MethodDescription)

	method, ok := class.FindMethod(methodName, signature)
	if !ok {
		method = coverage.NewMethod(methodName, signature, 0)
		class.AddChild(method)
	}

	increment := coverage.MustCoverage(coverage.Mutation, 0, 1)
	if detected {
		increment = coverage.MustCoverage(coverage.Mutation, 1, 0)
	}

	err = method.AccumulateValue(increment)
	if err != nil {
		return err
	}

	file.AddMutation(coverage.Mutant{
		Detected:     detected,
		Status:       coverage.ParseMutationStatus(status),
		Line:         line,
		Mutator:      strings.TrimSpace(m.Mutator),
		KillingTest:  strings.TrimSpace(m.KillingTest),
		MutatedClass: mutatedClass,
		Method:       methodName,
		Signature:    signature,
		Description:  strings.TrimSpace(m.Description),
	})

	return nil
}

// collectMutationLineCoverage marks lines with executed mutations as covered and
// lines with unexecuted mutations as missed, which wins over covered.
func collectMutationLineCoverage(file *coverage.Node) error {
	lines := make(map[int]bool)

	for _, m := range file.Mutations() {
		if m.IsCovered() {
			lines[m.Line] = true
		}
	}

	for _, m := range file.Mutations() {
		if m.IsMissed() {
			lines[m.Line] = false
		}
	}

	var covered, missed int

	for line, isCovered := range lines {
		if isCovered {
			covered++

			file.AddCounters(line, 1, 0)
		} else {
			missed++

			file.AddCounters(line, 0, 1)
		}
	}

	if covered+missed == 0 {
		return nil
	}

	return file.AddValue(coverage.MustCoverage(coverage.Line, covered, missed))
}

func splitClassName(mutatedClass string) (packageName, className string) {
	i := strings.LastIndex(mutatedClass, ".")
	if i < 0 {
		return "", mutatedClass
	}

	return mutatedClass[:i], mutatedClass[i+1:]
}
