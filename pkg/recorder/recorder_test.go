package recorder_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage/parser"
	"github.com/Sumatoshi-tech/covergate/pkg/recorder"
)

const reportTemplate = `<?xml version="1.0"?>
<coverage>
  <packages>
    <package name="%s">
      <classes>
        <class name="%s.Main" filename="%s/Main.java">
          <lines>
            <line number="1" hits="1" branch="false"/>
            <line number="2" hits="0" branch="false"/>
          </lines>
        </class>
      </classes>
    </package>
  </packages>
</coverage>
`

const noLinesReport = `<?xml version="1.0"?>
<coverage><packages><package name="empty"><classes>
  <class name="empty.Nothing" filename="empty/Nothing.java"/>
</classes></package></packages></coverage>
`

func cobertura(pkg string) string {
	return fmt.Sprintf(reportTemplate, pkg, pkg, pkg)
}

func workspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return dir
}

func TestRecord(t *testing.T) {
	t.Parallel()

	ws := workspace(t, map[string]string{
		"a/target/coverage.xml":       cobertura("alpha"),
		"b/deep/target/coverage.xml":  cobertura("beta"),
		"c/target/coverage.xml":       "",
		"d/target/coverage.xml":       "<coverage><packages>",
		"e/target/coverage.xml":       noLinesReport,
		"f/target/ignored-report.txt": cobertura("gamma"),
	})

	rec, err := recorder.New(recorder.Options{
		Workspace: "${WS}",
		Pattern:   "**/target/coverage.xml",
		Format:    parser.FormatCobertura,
		Workers:   2,
		Lookup: func(name string) (string, bool) {
			if name == "WS" {
				return ws, true
			}

			return "", false
		},
	}, nil, nil)
	require.NoError(t, err)

	result, err := rec.Record(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Files, 5)
	assert.Equal(t, []string{"a/target/coverage.xml", "b/deep/target/coverage.xml"}, result.Parsed)

	line, ok := result.Root.Value(coverage.Line)
	require.True(t, ok)
	assert.Equal(t, 2, line.Covered())
	assert.Equal(t, 2, line.Missed())

	_, ok = result.Root.FindPackage("alpha")
	assert.True(t, ok)

	kinds := map[recorder.EventKind]int{}
	for _, e := range rec.Events().Events() {
		kinds[e.Kind]++
	}

	assert.Equal(t, map[recorder.EventKind]int{
		recorder.EmptyFile:       1,
		recorder.MalformedReport: 1,
		recorder.NoDataFound:     1,
	}, kinds)

	errs := rec.Events().Errors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0].Cause, parser.ErrMalformedReport)
	assert.Len(t, rec.Events().Warnings(), 2)
}

func TestRecord_NoFiles(t *testing.T) {
	t.Parallel()

	rec, err := recorder.New(recorder.Options{
		Workspace: t.TempDir(),
		Pattern:   "**/*.xml",
		Format:    parser.FormatJacoco,
	}, nil, nil)
	require.NoError(t, err)

	_, err = rec.Record(context.Background())
	require.ErrorIs(t, err, recorder.ErrNoCoverageData)

	events := rec.Events().Events()
	require.Len(t, events, 1)
	assert.Equal(t, recorder.NoFilesMatched, events[0].Kind)
	assert.Equal(t, "**/*.xml", events[0].Path)
}

func TestRecord_OnlyBrokenFiles(t *testing.T) {
	t.Parallel()

	ws := workspace(t, map[string]string{"coverage.xml": "not xml"})

	rec, err := recorder.New(recorder.Options{Workspace: ws, Pattern: "coverage.xml", Format: "cobertura"}, nil, nil)
	require.NoError(t, err)

	_, err = rec.Record(context.Background())

	var noData *recorder.NoCoverageDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, 1, noData.Files)
}

func TestRecord_Canceled(t *testing.T) {
	t.Parallel()

	ws := workspace(t, map[string]string{"coverage.xml": cobertura("alpha")})

	rec, err := recorder.New(recorder.Options{Workspace: ws, Pattern: "coverage.xml", Format: "cobertura"}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = rec.Record(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type fakeConverter struct {
	out string
	err error
}

func (f fakeConverter) Convert(context.Context, string) (string, error) { return f.out, f.err }

func TestRecord_Parasoft(t *testing.T) {
	t.Parallel()

	ws := workspace(t, map[string]string{
		"report/coverage.xml":              `<Coverage ver="1"/>`,
		"generated/coverage-cobertura.xml": cobertura("converted"),
	})

	rec, err := recorder.New(recorder.Options{
		Workspace: ws,
		Pattern:   "report/*.xml",
		Format:    recorder.FormatParasoft,
		Converter: fakeConverter{out: filepath.Join(ws, "generated", "coverage-cobertura.xml")},
	}, nil, nil)
	require.NoError(t, err)

	result, err := rec.Record(context.Background())
	require.NoError(t, err)

	_, ok := result.Root.FindPackage("converted")
	assert.True(t, ok)

	failing, err := recorder.New(recorder.Options{
		Workspace: ws,
		Pattern:   "report/*.xml",
		Format:    recorder.FormatParasoft,
		Converter: fakeConverter{err: errors.New("xsltproc missing")},
	}, nil, nil)
	require.NoError(t, err)

	_, err = failing.Record(context.Background())
	require.ErrorIs(t, err, recorder.ErrNoCoverageData)
	assert.Equal(t, recorder.ConversionFailed, failing.Events().Errors()[0].Kind)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := recorder.New(recorder.Options{Format: "lcov"}, nil, nil)
	require.ErrorIs(t, err, parser.ErrUnsupportedFormat)

	_, err = recorder.New(recorder.Options{Format: recorder.FormatParasoft}, nil, nil)
	require.ErrorIs(t, err, recorder.ErrConverterRequired)
}

func TestExpandEnv(t *testing.T) {
	t.Parallel()

	lookup := func(name string) (string, bool) {
		if name == "BUILD_DIR" {
			return "/ws/build", true
		}

		return "", false
	}

	assert.Equal(t, "/ws/build/**/*.xml", recorder.ExpandEnv("${BUILD_DIR}/**/*.xml", lookup))
	assert.Equal(t, "${UNKNOWN}/x", recorder.ExpandEnv("${UNKNOWN}/x", lookup))
	assert.Equal(t, "$BUILD_DIR", recorder.ExpandEnv("$BUILD_DIR", lookup))
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	ws := workspace(t, map[string]string{
		"a/coverage.xml":    "x",
		"a/b/coverage.xml":  "x",
		"jacoco/jacoco.xml": "x",
		"other.txt":         "x",
	})

	files, err := recorder.Discover(ws, "**/coverage.xml, jacoco/*.xml, a/coverage.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/coverage.xml", "a/coverage.xml", "jacoco/jacoco.xml"}, files)

	_, err = recorder.Discover(ws, "[a-")
	require.ErrorIs(t, err, recorder.ErrInvalidPattern)
}
