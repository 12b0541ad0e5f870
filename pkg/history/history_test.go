package history_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/history"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
	"github.com/Sumatoshi-tech/covergate/pkg/trend"
)

func record(number int, status history.BuildStatus, covered, missed int) history.Record {
	rec := history.Record{
		Build:      trend.Build{Number: number},
		Status:     status,
		RecordedAt: time.UnixMilli(int64(number) * 1000).UTC(),
	}

	if covered+missed > 0 {
		rec.Statistics = stats.New(map[stats.Baseline][]coverage.Value{
			stats.Project: {coverage.MustCoverage(coverage.Line, covered, missed)},
		})
	}

	return rec
}

func stores(t *testing.T) map[string]history.Store {
	t.Helper()

	sqlite, err := history.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "history.db"), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]history.Store{
		"memory": history.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			next, err := history.NextBuildNumber(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, 1, next)

			for _, rec := range []history.Record{
				record(2, history.Success, 3, 1),
				record(1, history.Failure, 1, 1),
				record(3, history.Unstable, 0, 0),
			} {
				require.NoError(t, store.Save(ctx, rec))
			}

			// Saving again replaces the build.
			require.NoError(t, store.Save(ctx, record(3, history.Success, 1, 0)))

			records, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, []int{1, 2, 3}, []int{records[0].Build.Number, records[1].Build.Number, records[2].Build.Number})
			assert.Equal(t, history.Success, records[2].Status)

			got, err := store.Get(ctx, 2)
			require.NoError(t, err)
			assert.True(t, record(2, history.Success, 3, 1).Statistics.Equal(got.Statistics))
			assert.True(t, got.RecordedAt.Equal(time.UnixMilli(2000)))

			_, err = store.Get(ctx, 42)
			require.ErrorIs(t, err, history.ErrNotFound)

			next, err = history.NextBuildNumber(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, 4, next)

			removed, err := store.Prune(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			records, err = store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, records, 2)
		})
	}
}

func TestCodec(t *testing.T) {
	t.Parallel()

	rec := record(7, history.Unstable, 28, 8)
	rec.Build.Label = strings.Repeat("nightly ", 64)

	blob, err := history.EncodeRecord(rec)
	require.NoError(t, err)

	decoded, err := history.DecodeRecord(blob)
	require.NoError(t, err)
	assert.Equal(t, rec.Build, decoded.Build)
	assert.Equal(t, rec.Status, decoded.Status)
	assert.True(t, rec.Statistics.Equal(decoded.Statistics))

	_, err = history.DecodeRecord(blob[:3])
	require.ErrorIs(t, err, history.ErrCorrupt)

	broken := append([]byte{9}, blob[1:]...)
	_, err = history.DecodeRecord(broken)
	require.ErrorIs(t, err, history.ErrCorrupt)
}

func TestResolveReference_Default(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		records []history.Record
		want    history.ReferenceStatus
		build   int
	}{
		{"first build", nil, history.NoPreviousBuild, 0},
		{"only failures", []history.Record{record(1, history.Failure, 1, 1)}, history.NoReferenceBuild, 0},
		{"no coverage", []history.Record{record(1, history.Success, 0, 0)}, history.NoCoverageDataInReference, 0},
		{"latest successful with coverage", []history.Record{
			record(1, history.Success, 1, 1),
			record(2, history.Unstable, 2, 1),
			record(3, history.Success, 0, 0),
			record(4, history.Failure, 3, 0),
		}, history.ReferenceOK, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := history.NewMemoryStore()
			for _, rec := range tt.records {
				require.NoError(t, store.Save(ctx, rec))
			}

			ref, err := history.ResolveReference(ctx, store, 5, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.Status)

			if tt.build > 0 {
				require.NotNil(t, ref.Record)
				assert.Equal(t, tt.build, ref.Record.Build.Number)
			}
		})
	}
}

func TestResolveReference_Requested(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := history.NewMemoryStore()

	require.NoError(t, store.Save(ctx, record(1, history.Success, 1, 1)))
	require.NoError(t, store.Save(ctx, record(2, history.Failure, 1, 1)))

	tests := []struct {
		requested string
		want      history.ReferenceStatus
	}{
		{"1", history.ReferenceOK},
		{"2", history.ReferenceNotSuccessful},
		{"3", history.ReferenceIsCurrentBuild},
		{"9", history.NoReferenceBuild},
		{"last", history.NoReferenceBuild},
	}

	for _, tt := range tests {
		ref, err := history.ResolveReference(ctx, store, 3, tt.requested)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ref.Status, tt.requested)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	store, err := history.Open(context.Background(), "none", "", nil)
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = history.Open(context.Background(), "postgres", "", nil)
	require.ErrorIs(t, err, history.ErrUnknownDriver)
}

func TestResults(t *testing.T) {
	t.Parallel()

	results := history.Results([]history.Record{
		record(1, history.Success, 1, 1),
		record(2, history.Failure, 0, 0),
	})

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Build.Number)
}
