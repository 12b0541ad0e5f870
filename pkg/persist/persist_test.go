package persist_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/persist"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

type artifact struct {
	Build      int               `json:"build"      yaml:"build"`
	Statistics *stats.Statistics `json:"statistics" yaml:"statistics"`
}

func sample() *artifact {
	return &artifact{
		Build: 12,
		Statistics: stats.New(map[stats.Baseline][]coverage.Value{
			stats.Project: {
				coverage.MustCoverage(coverage.Line, 28, 8),
				coverage.NewInteger(coverage.Complexity, 12),
			},
			stats.ModifiedLinesDelta: {coverage.NewFraction(coverage.Line, 3, 2)},
		}),
	}
}

func TestPersister_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			codec, err := persist.CodecFor(format)
			require.NoError(t, err)

			dir := filepath.Join(t.TempDir(), "out")
			p := persist.NewPersister[artifact]("statistics", codec)

			require.NoError(t, p.Save(dir, sample()))
			assert.FileExists(t, filepath.Join(dir, "statistics."+format))

			loaded, err := p.Load(dir)
			require.NoError(t, err)
			assert.Equal(t, 12, loaded.Build)
			assert.True(t, sample().Statistics.Equal(loaded.Statistics))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temporary files are left behind")
		})
	}
}

func TestYAMLCodec_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, persist.YAMLCodec{}.Encode(&buf, sample()))
	assert.Contains(t, buf.String(), "project:\n")
	assert.Contains(t, buf.String(), "LINE: 28/36")
}

func TestJSONCodec_Compact(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, (&persist.JSONCodec{}).Encode(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
	assert.Equal(t, "{\"a\":1}\n", buf.String())
}

func TestCodecFor_Unknown(t *testing.T) {
	t.Parallel()

	_, err := persist.CodecFor("gob")
	require.ErrorIs(t, err, persist.ErrUnknownFormat)
}

func TestPersister_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := persist.NewPersister[artifact]("statistics", persist.NewJSONCodec()).Load(t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}
