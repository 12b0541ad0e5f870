// Package convert turns proprietary coverage reports into Cobertura documents
// by applying an XSLT stylesheet with an external processor.
package convert

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage/parser"
)

// DefaultProcessor is the XSLT processor binary used when none is configured.
const DefaultProcessor = "xsltproc"

// exitDocumentError is the xsltproc exit code of an input document it cannot parse.
const exitDocumentError = 6

// Sentinel errors for the conversion kinds.
var (
	ErrInputNotFound    = errors.New("input file not found")
	ErrMalformedInput   = errors.New("malformed input document")
	ErrTransformFailure = errors.New("transformation failed")

	errNoRootElement = errors.New("no root element")
)

// Kind classifies a conversion failure.
type Kind int

// Conversion failure kinds.
const (
	InputNotFound Kind = iota
	MalformedInput
	TransformFailure
)

var kindErrors = [...]error{
	InputNotFound:    ErrInputNotFound,
	MalformedInput:   ErrMalformedInput,
	TransformFailure: ErrTransformFailure,
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindErrors) {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return kindErrors[k].Error()
}

// ConversionError reports a failed conversion of one input document.
type ConversionError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the kind sentinel and the cause.
func (e *ConversionError) Unwrap() []error {
	errs := []error{kindErrors[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// Converter applies a stylesheet to an input document and returns the result.
type Converter interface {
	Convert(ctx context.Context, stylesheet, input string, params map[string]string) ([]byte, error)
}

// Result holds the outcome of an external command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner runs external commands. A non-zero exit code is reported in the
// result, not as an error.
type Runner interface {
	Run(ctx context.Context, command string, args ...string) (*Result, error)
}

// CommandRunner runs commands on the host.
type CommandRunner struct{}

// Run implements Runner.
func (CommandRunner) Run(ctx context.Context, command string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run %s: %w", command, err)
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}, nil
}

var (
	// externalEntity matches entity declarations that reference external resources.
	externalEntity = regexp.MustCompile(`<!ENTITY\s[^>]*\b(SYSTEM|PUBLIC)\b`)
	// internalEntity captures the names of general entities declared in a DOCTYPE.
	internalEntity = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_:][-A-Za-z0-9._:]*)\s`)
)

// XSLTConverter converts documents with an XSLT 1.0 processor compatible with
// xsltproc. Network access and DTD validation are disabled.
type XSLTConverter struct {
	Processor string
	Runner    Runner
}

// NewXSLTConverter creates a converter running the given processor binary.
func NewXSLTConverter(processor string) *XSLTConverter {
	if processor == "" {
		processor = DefaultProcessor
	}

	return &XSLTConverter{Processor: processor, Runner: CommandRunner{}}
}

// Convert implements Converter. Parameters are passed as string parameters in
// key order.
func (c *XSLTConverter) Convert(ctx context.Context, stylesheet, input string, params map[string]string) ([]byte, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, &ConversionError{Kind: InputNotFound, Path: input, Err: err}
	}

	err = CheckEntities(data)
	if err != nil {
		return nil, &ConversionError{Kind: MalformedInput, Path: input, Err: err}
	}

	err = CheckWellFormed(data)
	if err != nil {
		return nil, &ConversionError{Kind: MalformedInput, Path: input, Err: err}
	}

	args := []string{"--nonet", "--novalid"}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		args = append(args, "--stringparam", k, params[k])
	}

	args = append(args, stylesheet, input)

	res, err := c.Runner.Run(ctx, c.Processor, args...)
	if err != nil {
		return nil, &ConversionError{Kind: TransformFailure, Path: input, Err: err}
	}

	if res.ExitCode != 0 {
		kind := TransformFailure
		if res.ExitCode == exitDocumentError {
			kind = MalformedInput
		}

		return nil, &ConversionError{
			Kind: kind,
			Path: input,
			Err:  fmt.Errorf("%s exited with %d: %s", c.Processor, res.ExitCode, strings.TrimSpace(string(res.Stderr))),
		}
	}

	return res.Stdout, nil
}

// CheckEntities rejects documents declaring external entities.
func CheckEntities(data []byte) error {
	if loc := externalEntity.FindIndex(data); loc != nil {
		return fmt.Errorf("external entity declaration at offset %d", loc[0])
	}

	return nil
}

// CheckWellFormed rejects documents that are not well-formed XML. Entities
// declared in the document type are accepted without being expanded.
func CheckWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = parser.CharsetReader
	decoder.Entity = make(map[string]string)

	for _, match := range internalEntity.FindAllSubmatch(data, -1) {
		decoder.Entity[string(match[1])] = ""
	}

	sawRoot := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("not well-formed: %w", err)
		}

		if _, ok := token.(xml.StartElement); ok {
			sawRoot = true
		}
	}

	if !sawRoot {
		return fmt.Errorf("not well-formed: %w", errNoRootElement)
	}

	return nil
}
