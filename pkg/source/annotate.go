// Package source annotates source files with the line coverage of a file node.
package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// Status classifies the coverage of one source line.
type Status int

// Line statuses. NotInstrumented lines carry no counters.
const (
	NotInstrumented Status = iota
	None
	Partial
	Full
)

var statusNames = [...]string{
	NotInstrumented: "not-instrumented",
	None:            "none",
	Partial:         "partial",
	Full:            "full",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "status(" + strconv.Itoa(int(s)) + ")"
	}

	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Line is a source line with its coverage.
type Line struct {
	Number   int    `json:"number"`
	Code     string `json:"code"`
	Status   Status `json:"status"`
	Covered  int    `json:"covered"`
	Missed   int    `json:"missed"`
	Tooltip  string `json:"tooltip,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Modified bool   `json:"modified,omitempty"`
}

// Classify derives the coverage of a line of file. Code is left empty.
func Classify(file *coverage.Node, number int) Line {
	line := Line{Number: number, Modified: file.HasModifiedLine(number)}

	counters, ok := file.Counters(number)
	if !ok {
		return line
	}

	line.Covered, line.Missed = counters.Covered, counters.Missed
	total := counters.Total()

	switch {
	case counters.Covered == 0:
		line.Status = None
	case counters.Missed == 0:
		line.Status = Full
	default:
		line.Status = Partial
	}

	switch {
	case total > 1 && counters.Missed == 0:
		line.Tooltip = "All branches covered"
	case total > 1:
		line.Tooltip = fmt.Sprintf("Partially covered, branch coverage: %d/%d", counters.Covered, total)
	case counters.Covered == 1:
		line.Tooltip = "Covered at least once"
	default:
		line.Tooltip = "Not covered"
	}

	line.Summary = strconv.Itoa(counters.Covered)
	if total > 1 {
		line.Summary = fmt.Sprintf("%d/%d", counters.Covered, total)
	}

	return line
}

// Annotate reads the source of file from src and classifies every line.
func Annotate(file *coverage.Node, src io.Reader) ([]Line, error) {
	if file.Kind() != coverage.File {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, file)
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var lines []Line

	for number := 1; scanner.Scan(); number++ {
		line := Classify(file, number)
		line.Code = strings.TrimRight(scanner.Text(), "\r")
		lines = append(lines, line)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read source of %s: %w", file.RelativePath(), err)
	}

	return lines, nil
}

// Summary counts the lines per status.
func Summary(lines []Line) map[Status]int {
	counts := make(map[Status]int, len(statusNames))
	for _, l := range lines {
		counts[l.Status]++
	}

	return counts
}
