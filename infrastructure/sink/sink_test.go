package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, chi2, n float64) service.Record {
	t.Helper()
	m, err := fit.NewModel(
		[]fit.Absorber{fit.NewAbsorber("H", "H I", n, 20, 2)},
		[]fit.ContinuumPoint{fit.NewContinuumPoint("c0", 1210, 1)},
		nil,
		fit.WithSummary(chi2, 0, 0),
	)
	require.NoError(t, err)
	return service.NewRecord(m)
}

func TestCSVSink_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s := NewCSVSink(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record(t, 3, 15)))
	require.NoError(t, s.Append(ctx, record(t, 2, 15.5)))

	header, rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chi2", "c0_x", "c0_y", "H_ionName", "H_N", "H_b", "H_z"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "H I", rows[0][3])
	assert.Equal(t, "15.5", rows[1][4])
}

func TestCSVSink_HeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s := NewCSVSink(path)
	require.NoError(t, s.Append(context.Background(), record(t, 1, 15)))

	other := service.NewRecordFromColumns("", "", 1, []string{"chi2"}, []string{"1"})
	assert.ErrorIs(t, s.Append(context.Background(), other), ErrHeaderMismatch)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, JobFileName("H_N", 0)), record(t, 5, 15)))
	require.NoError(t, WriteFile(filepath.Join(dir, JobFileName("H_N", 1)), record(t, 2, 15.5)))
	require.NoError(t, WriteFile(filepath.Join(dir, JobFileName("H_N", 2)), record(t, 5, 15)))
	require.NoError(t, WriteFile(filepath.Join(dir, JobFileName("H_N", 10)), record(t, 3, 16)))
	require.NoError(t, WriteFile(filepath.Join(dir, JobFileName("c0_y", 0)), record(t, 1, 14)))

	path, n, err := Merge(dir, "H_N")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "H_N.csv"), path)
	assert.Equal(t, 3, n, "duplicate rows are dropped")

	header, rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chi2", header[0])
	assert.Equal(t, []string{"2", "3", "5"}, []string{rows[0][0], rows[1][0], rows[2][0]})

	again, _, err := Merge(dir, "H_N")
	require.NoError(t, err)
	_, rowsAgain, err := ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, rows, rowsAgain, "merging is stable and ignores the merged output")
}

func TestMerge_HeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "H_N_0.csv"), record(t, 1, 15)))
	other := service.NewRecordFromColumns("", "", 1, []string{"chi2"}, []string{"1"})
	require.NoError(t, WriteFile(filepath.Join(dir, "H_N_1.csv"), other))

	_, _, err := Merge(dir, "H_N")
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestMerge_NoFiles(t *testing.T) {
	_, _, err := Merge(t.TempDir(), "H_N")
	assert.Error(t, err)
}

func TestMergeAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "H_N_0.csv"), record(t, 1, 15)))
	require.NoError(t, WriteFile(filepath.Join(dir, "c0_y_0.csv"), record(t, 1, 15)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	prefixes, err := Prefixes(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"H_N", "c0_y"}, prefixes)

	merged, err := MergeAll(dir)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.FileExists(t, merged["c0_y"])
}

func TestWriteFile_NoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "H_N_0.csv")

	assert.Error(t, WriteFile(path, record(t, 1, 15)))
	assert.NoFileExists(t, path)

	assert.Error(t, WriteFile(filepath.Join(dir, "empty.csv")))
}
