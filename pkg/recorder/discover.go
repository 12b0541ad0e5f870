package recorder

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var variable = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// ExpandEnv replaces ${VAR} references using lookup. Unknown variables are
// kept as they are. A nil lookup uses the process environment.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return variable.ReplaceAllStringFunc(s, func(ref string) string {
		value, ok := lookup(ref[2 : len(ref)-1])
		if !ok {
			return ref
		}

		return value
	})
}

// SplitPatterns splits a comma separated pattern list and drops blanks.
func SplitPatterns(patterns string) []string {
	var out []string

	for p := range strings.SplitSeq(patterns, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ReplaceAll(p, "\\", "/"))
		}
	}

	return out
}

// Discover returns the regular files below workspace matching any of the
// comma separated glob patterns. Patterns support "**". Paths are relative to
// the workspace, slash separated, sorted and unique.
func Discover(workspace, patterns string) ([]string, error) {
	fsys := os.DirFS(workspace)

	var files []string

	for _, p := range SplitPatterns(patterns) {
		p = strings.TrimPrefix(path.Clean(p), "./")
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}

		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}

		files = append(files, matches...)
	}

	slices.Sort(files)

	return slices.Compact(files), nil
}
