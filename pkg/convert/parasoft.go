package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// GeneratedDir is the directory, next to each report, receiving converted documents.
	GeneratedDir = "generatedCoverageFiles"

	// WorkingDirectoryParam is the stylesheet parameter carrying the workspace path.
	WorkingDirectoryParam = "pipelineBuildWorkingDirectory"

	maxLineSize = 16 << 20
)

// parasoftCoverage matches the opening Coverage element carrying a ver attribute.
var parasoftCoverage = regexp.MustCompile(`<Coverage\s[^>]*\bver\s*=`)

var errNotParasoft = errors.New("no Parasoft coverage information found")

// IsParasoftReport reports whether r contains a Parasoft coverage element. The
// version attribute distinguishes it from the Coverage element of test reports.
func IsParasoftReport(r io.Reader) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if parasoftCoverage.Match(scanner.Bytes()) {
			return true, nil
		}
	}

	err := scanner.Err()
	if err != nil {
		return false, fmt.Errorf("scan report: %w", err)
	}

	return false, nil
}

// ParasoftReport converts Parasoft coverage reports to Cobertura files. Reports
// in the same directory share one generated output directory per instance.
type ParasoftReport struct {
	Converter  Converter
	Stylesheet string
	Workspace  string

	// NewID generates directory and file name suffixes; uuid.NewString when nil.
	NewID func() string

	mu   sync.Mutex
	dirs map[string]string
}

// NewParasoftReport creates a converter for reports below workspace.
func NewParasoftReport(converter Converter, stylesheet, workspace string) *ParasoftReport {
	return &ParasoftReport{
		Converter:  converter,
		Stylesheet: stylesheet,
		Workspace:  workspace,
		NewID:      uuid.NewString,
	}
}

// Convert validates and converts the report at path and returns the path of the
// generated Cobertura document.
func (p *ParasoftReport) Convert(ctx context.Context, path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xml") {
		return "", &ConversionError{Kind: MalformedInput, Path: path, Err: errors.New("unrecognized report file")}
	}

	err := validate(path)
	if err != nil {
		return "", err
	}

	workspace, err := canonical(p.Workspace)
	if err != nil {
		return "", &ConversionError{Kind: InputNotFound, Path: p.Workspace, Err: err}
	}

	data, err := p.Converter.Convert(ctx, p.Stylesheet, path, map[string]string{WorkingDirectoryParam: workspace})
	if err != nil {
		return "", err
	}

	dir, err := p.outputDir(path)
	if err != nil {
		return "", &ConversionError{Kind: TransformFailure, Path: path, Err: err}
	}

	output := filepath.Join(dir, fmt.Sprintf("%s-cobertura_%s.xml", filepath.Base(path), p.id()))

	err = os.WriteFile(output, data, 0o600)
	if err != nil {
		return "", &ConversionError{Kind: TransformFailure, Path: path, Err: err}
	}

	return output, nil
}

func validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ConversionError{Kind: InputNotFound, Path: path, Err: err}
	}
	defer f.Close()

	ok, err := IsParasoftReport(f)
	if err != nil {
		return &ConversionError{Kind: MalformedInput, Path: path, Err: err}
	}

	if !ok {
		return &ConversionError{Kind: MalformedInput, Path: path, Err: errNotParasoft}
	}

	return nil
}

func (p *ParasoftReport) outputDir(report string) (string, error) {
	parent := filepath.Join(filepath.Dir(report), GeneratedDir)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dirs == nil {
		p.dirs = make(map[string]string)
	}

	dir, ok := p.dirs[parent]
	if !ok {
		dir = filepath.Join(parent, p.id())
		p.dirs[parent] = dir
	}

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	return dir, nil
}

func (p *ParasoftReport) id() string {
	if p.NewID == nil {
		return uuid.NewString()
	}

	return p.NewID()
}

func canonical(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}

	return strings.TrimSuffix(resolved, string(filepath.Separator)), nil
}
