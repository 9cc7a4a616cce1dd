package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/config"
	"finsheet/internal/shared/testutil"
)

func newTestWriter(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := &config.Paths{
		BaseDir:      dir,
		ReportsDir:   filepath.Join(dir, "reports"),
		DownloadsDir: filepath.Join(dir, "downloads"),
	}
	logger, _ := testutil.NewTestLogger(t)
	return NewCSVWriter(paths, logger), paths
}

func readCSV(t *testing.T, path string) (bool, [][]string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	hasBOM := bytes.HasPrefix(data, utf8BOM)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return hasBOM, records
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		wantBOM bool
		want    [][]string
	}{
		{
			name:    "headers and records with BOM",
			options: WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "2"}}, BOMPrefix: true},
			wantBOM: true,
			want:    [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:    "records only",
			options: WriteOptions{Records: [][]string{{"x,y", `q"uote`}}},
			want:    [][]string{{"x,y", `q"uote`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, paths := newTestWriter(t)

			require.NoError(t, w.WriteCSV("out.csv", tt.options))

			hasBOM, records := readCSV(t, filepath.Join(paths.ReportsDir, "out.csv"))
			assert.Equal(t, tt.wantBOM, hasBOM)
			assert.Equal(t, tt.want, records)
		})
	}
}

func TestCSVWriter_Append(t *testing.T) {
	w, paths := newTestWriter(t)
	path := filepath.Join(paths.ReportsDir, "append.csv")

	require.NoError(t, w.WriteCSV(path, WriteOptions{Headers: []string{"h"}, Records: [][]string{{"1"}}, BOMPrefix: true}))
	require.NoError(t, w.WriteCSV(path, WriteOptions{Headers: []string{"h"}, Records: [][]string{{"2"}}, Append: true, BOMPrefix: true}))

	hasBOM, records := readCSV(t, path)
	assert.True(t, hasBOM)
	assert.Equal(t, [][]string{{"h"}, {"1"}, {"2"}}, records)
}

func TestCSVWriter_AppendToMissingFileWritesHeaders(t *testing.T) {
	w, paths := newTestWriter(t)

	require.NoError(t, w.WriteCSV("fresh.csv", WriteOptions{Headers: []string{"h"}, Records: [][]string{{"1"}}, Append: true}))

	_, records := readCSV(t, filepath.Join(paths.ReportsDir, "fresh.csv"))
	assert.Equal(t, [][]string{{"h"}, {"1"}}, records)
}

func TestCSVWriter_AbsolutePathKept(t *testing.T) {
	w, _ := newTestWriter(t)
	path := filepath.Join(t.TempDir(), "nested", "abs.csv")

	require.NoError(t, w.WriteCSV(path, WriteOptions{Records: [][]string{{"1"}}}))
	assert.FileExists(t, path)
}

func TestStreamWriter(t *testing.T) {
	w, paths := newTestWriter(t)

	sw, err := w.CreateStreamWriter("stream.csv", []string{"metric", "value"})
	require.NoError(t, err)
	require.NoError(t, sw.WriteRecord([]string{"Sales", "1200"}))
	require.NoError(t, sw.WriteRecord([]string{"EPS", "18"}))
	require.NoError(t, sw.Close())

	hasBOM, records := readCSV(t, filepath.Join(paths.ReportsDir, "stream.csv"))
	assert.True(t, hasBOM)
	assert.Equal(t, [][]string{{"metric", "value"}, {"Sales", "1200"}, {"EPS", "18"}}, records)
}
