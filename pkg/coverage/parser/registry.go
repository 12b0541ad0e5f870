package parser

import (
	"maps"
	"slices"
	"strings"
)

// Format identifiers accepted by New.
const (
	FormatCobertura = "cobertura"
	FormatJacoco    = "jacoco"
	FormatPit       = "pit"
	FormatGoCover   = "go-cover"
)

// factories is the closed table of supported formats.
var factories = map[string]func() Parser{
	FormatCobertura: func() Parser { return CoberturaParser{} },
	FormatJacoco:    func() Parser { return JacocoParser{} },
	FormatPit:       func() Parser { return PitParser{} },
	FormatGoCover:   func() Parser { return GoCoverParser{} },
}

// New returns the parser for a format identifier. Identifiers are case-insensitive.
func New(format string) (Parser, error) {
	factory, ok := factories[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, &UnsupportedFormatError{Format: format}
	}

	return factory(), nil
}

// Formats returns the sorted identifiers of all supported formats.
func Formats() []string {
	return slices.Sorted(maps.Keys(factories))
}
