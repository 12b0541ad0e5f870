// Package parser converts coverage reports of different tools into coverage trees.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
)

// Sentinel errors for report parsing.
var (
	ErrMalformedReport   = errors.New("malformed coverage report")
	ErrUnsupportedFormat = errors.New("unsupported report format")
	ErrNoCoverage        = errors.New("no coverage information found")
	errMissingAttribute  = errors.New("missing required attribute")
	errNotANumber        = errors.New("counter is not a number")
	errInvalidAttribute  = errors.New("invalid attribute value")
)

// Parser reads a single report document and returns the root of its coverage tree.
type Parser interface {
	// Parse reads the report from r. The fileName is only used in error messages.
	Parse(r io.Reader, fileName string) (*coverage.Node, error)
}

// MalformedReportError reports a structural problem of a report document.
type MalformedReportError struct {
	Path  string
	Cause error
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrMalformedReport, e.Path, e.Cause)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (e *MalformedReportError) Unwrap() []error {
	return []error{ErrMalformedReport, e.Cause}
}

// UnsupportedFormatError reports a format identifier the registry does not know.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q (supported: %s)", ErrUnsupportedFormat, e.Format, strings.Join(Formats(), ", "))
}

// Unwrap returns ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

func malformed(fileName string, cause error) error {
	return &MalformedReportError{Path: fileName, Cause: cause}
}

// decodeXML decodes the whole document into v. Entities are never resolved by
// encoding/xml, so DOCTYPE declarations are skipped without fetching anything.
func decodeXML(r io.Reader, fileName string, v any) error {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = CharsetReader

	err := decoder.Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return malformed(fileName, io.ErrUnexpectedEOF)
		}

		return malformed(fileName, err)
	}

	return nil
}

// CharsetReader decodes documents declaring a character set other than UTF-8.
// Any encoding of the IANA registry known to golang.org/x/text is accepted.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	if enc == nil {
		if strings.EqualFold(charset, "us-ascii") {
			return input, nil
		}

		return nil, fmt.Errorf("unsupported charset %q", charset)
	}

	return enc.NewDecoder().Reader(input), nil
}

func required(element, attribute, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: '%s' of element '%s'", errMissingAttribute, attribute, element)
	}

	return value, nil
}

func atoi(element, attribute, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: '%s' of element '%s' is %q", errNotANumber, attribute, element, value)
	}

	return n, nil
}

// optionalAtoi parses an optional counter; a blank value is zero.
func optionalAtoi(element, attribute, value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}

	return atoi(element, attribute, value)
}

// relativePath normalizes separators and strips leading "./" segments.
func relativePath(name string) string {
	normalized := strings.ReplaceAll(name, "\\", "/")
	if normalized == "" {
		return ""
	}

	return strings.TrimPrefix(path.Clean(normalized), "./")
}

func baseName(name string) string {
	return path.Base(relativePath(name))
}
