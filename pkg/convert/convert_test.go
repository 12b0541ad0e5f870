package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/convert"
)

const parasoftReport = `<?xml version="1.0" encoding="UTF-8"?>
<Coverage ver="10.6.1" pipelineBuildWorkingDir="/ws">
  <Locations/>
</Coverage>
`

type fakeRunner struct {
	command string
	args    []string
	result  *convert.Result
	err     error
}

func (f *fakeRunner) Run(_ context.Context, command string, args ...string) (*convert.Result, error) {
	f.command = command
	f.args = args

	return f.result, f.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestXSLTConverter_Arguments(t *testing.T) {
	t.Parallel()

	input := writeFile(t, t.TempDir(), "coverage.xml", parasoftReport)
	runner := &fakeRunner{result: &convert.Result{Stdout: []byte("<coverage/>")}}
	conv := &convert.XSLTConverter{Processor: "xsltproc", Runner: runner}

	out, err := conv.Convert(context.Background(), "cobertura.xsl", input, map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "<coverage/>", string(out))
	assert.Equal(t, "xsltproc", runner.command)
	assert.Equal(t, []string{
		"--nonet", "--novalid",
		"--stringparam", "a", "1",
		"--stringparam", "b", "2",
		"cobertura.xsl", input,
	}, runner.args)
}

func TestXSLTConverter_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xxe := writeFile(t, dir, "xxe.xml",
		`<?xml version="1.0"?><!DOCTYPE r [<!ENTITY x SYSTEM "file:///etc/passwd">]><r>&x;</r>`)
	doctype := writeFile(t, dir, "doctype.xml", `<?xml version="1.0"?><!DOCTYPE r [<!ENTITY x "y">]><r>&x;</r>`)
	truncated := writeFile(t, dir, "truncated.xml", `<Coverage ver="1"><Locations>`)

	tests := []struct {
		name   string
		input  string
		runner *fakeRunner
		kind   convert.Kind
		target error
	}{
		{"missing input", filepath.Join(dir, "missing.xml"), &fakeRunner{}, convert.InputNotFound, convert.ErrInputNotFound},
		{"external entity", xxe, &fakeRunner{}, convert.MalformedInput, convert.ErrMalformedInput},
		{"not well-formed", truncated, &fakeRunner{result: &convert.Result{}}, convert.MalformedInput, convert.ErrMalformedInput},
		{"document rejected by processor", doctype, &fakeRunner{result: &convert.Result{ExitCode: 6, Stderr: []byte("parser error")}},
			convert.MalformedInput, convert.ErrMalformedInput},
		{"stylesheet error", doctype, &fakeRunner{result: &convert.Result{ExitCode: 5, Stderr: []byte("bad xsl")}},
			convert.TransformFailure, convert.ErrTransformFailure},
		{"runner error", doctype, &fakeRunner{err: errors.New("not found")}, convert.TransformFailure, convert.ErrTransformFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conv := &convert.XSLTConverter{Processor: "xsltproc", Runner: tt.runner}

			_, err := conv.Convert(context.Background(), "x.xsl", tt.input, nil)
			require.ErrorIs(t, err, tt.target)

			if tt.input == truncated {
				assert.Empty(t, tt.runner.command, "processor must not run on a broken document")
			}

			var convErr *convert.ConversionError
			require.ErrorAs(t, err, &convErr)
			assert.Equal(t, tt.kind, convErr.Kind)
			assert.Equal(t, tt.input, convErr.Path)
		})
	}
}

func TestCheckWellFormed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"element", `<Coverage ver="1"><Locations/></Coverage>`, true},
		{"declared entity", `<!DOCTYPE r [<!ENTITY x "y">]><r>&x;</r>`, true},
		{"latin-1", "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><r>caf\xe9</r>", true},
		{"unclosed element", `<Coverage ver="1"><Locations>`, false},
		{"mismatched tags", `<a><b></a></b>`, false},
		{"undeclared entity", `<r>&x;</r>`, false},
		{"no root", `<?xml version="1.0"?>`, false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := convert.CheckWellFormed([]byte(tt.doc))
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestIsParasoftReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"coverage report", parasoftReport, true},
		{"test report coverage element", "<ResultsSession>\n<Exec><Coverage id=\"1\"/></Exec>\n</ResultsSession>", false},
		{"version attribute", `<Coverage version="2"/>`, false},
		{"attribute after others", `<Coverage id="7" ver="10.5">`, true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := convert.IsParasoftReport(strings.NewReader(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeConverter struct {
	params []map[string]string
}

func (f *fakeConverter) Convert(_ context.Context, _, _ string, params map[string]string) ([]byte, error) {
	f.params = append(f.params, params)

	return []byte("<coverage/>"), nil
}

func TestParasoftReport_Convert(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	reports := filepath.Join(workspace, "reports")
	require.NoError(t, os.MkdirAll(reports, 0o750))

	first := writeFile(t, reports, "coverage.xml", parasoftReport)
	second := writeFile(t, reports, "other.xml", parasoftReport)

	ids := []string{"run", "a", "b"}
	conv := &fakeConverter{}
	report := convert.NewParasoftReport(conv, "parasoft.xsl", workspace)
	report.NewID = func() string {
		id := ids[0]
		ids = ids[1:]

		return id
	}

	out, err := report.Convert(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reports, convert.GeneratedDir, "run", "coverage.xml-cobertura_a.xml"), out)

	out, err = report.Convert(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reports, convert.GeneratedDir, "run", "other.xml-cobertura_b.xml"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<coverage/>", string(data))

	resolved, err := filepath.EvalSymlinks(workspace)
	require.NoError(t, err)
	require.Len(t, conv.params, 2)
	assert.Equal(t, resolved, conv.params[0][convert.WorkingDirectoryParam])
}

func TestParasoftReport_Rejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := convert.NewParasoftReport(&fakeConverter{}, "parasoft.xsl", dir)

	_, err := report.Convert(context.Background(), writeFile(t, dir, "coverage.txt", parasoftReport))
	require.ErrorIs(t, err, convert.ErrMalformedInput)

	_, err = report.Convert(context.Background(), writeFile(t, dir, "report.xml", "<ResultsSession/>"))
	require.ErrorIs(t, err, convert.ErrMalformedInput)

	_, err = report.Convert(context.Background(), filepath.Join(dir, "missing.xml"))
	require.ErrorIs(t, err, convert.ErrInputNotFound)
}
