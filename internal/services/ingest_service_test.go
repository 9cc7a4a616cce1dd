package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/config"
	"finsheet/internal/dataprocessing"
	apperrors "finsheet/internal/errors"
	"finsheet/internal/exporter"
	"finsheet/internal/infrastructure"
	"finsheet/internal/shared/testutil"
	"finsheet/internal/store"
)

// fakeFetcher serves workbooks from a map keyed by symbol
type fakeFetcher struct {
	files map[string]string
	calls atomic.Int32
}

func (f *fakeFetcher) Download(ctx context.Context, symbol string) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, ok := f.files[symbol]
	if !ok {
		return "", errors.New("company not found")
	}
	return path, nil
}

type fixture struct {
	svc     *IngestService
	store   *store.MemoryStore
	fetcher *fakeFetcher
	metrics *infrastructure.PipelineMetrics
	paths   *config.Paths
	logs    *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)

	dir := t.TempDir()
	paths := &config.Paths{
		BaseDir:      dir,
		DataDir:      dir,
		DownloadsDir: filepath.Join(dir, "downloads"),
		ReportsDir:   filepath.Join(dir, "reports"),
	}

	f := &fixture{
		store:   store.NewMemoryStore(),
		fetcher: &fakeFetcher{files: map[string]string{}},
		metrics: infrastructure.NewUnregisteredPipelineMetrics(),
		paths:   paths,
		logs:    handler,
	}
	f.svc = NewIngestService(IngestDeps{
		Fetcher:   f.fetcher,
		Store:     f.store,
		Exporter:  exporter.NewEventExporter(exporter.NewCSVWriter(paths, logger)),
		Metrics:   f.metrics,
		SheetName: testutil.ExportSheetName,
		Logger:    logger,
	})
	return f
}

func degradedSheet() [][]string {
	rows := testutil.StatementSheet()
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Quarters" {
			row[0] = "Quarterly Results"
		}
	}
	return rows
}

func TestIngestService_ProcessFile(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	report, err := f.svc.ProcessFile(context.Background(), path, "ACME", IngestOptions{Persist: true, Export: true})
	require.NoError(t, err)

	assert.Equal(t, infrastructure.StatusSuccess, report.Status)
	assert.Equal(t, testutil.StatementSheetEvents, report.Events)
	assert.Equal(t, testutil.StatementSheetEvents, report.Persisted)
	assert.Equal(t, 2, report.AnnualPeriods)
	assert.Equal(t, 3, report.QuarterlyPeriods)
	assert.Empty(t, report.FailedSections)
	assert.NotNil(t, report.Trends)
	assert.Len(t, report.EventsOf(), testutil.StatementSheetEvents)

	assert.Equal(t, filepath.Join(f.paths.ReportsDir, "ACME_timeseries.csv"), report.ReportPath)
	assert.FileExists(t, report.ReportPath)
	assert.Equal(t, testutil.StatementSheetEvents, f.store.Len())

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CompaniesProcessed.WithLabelValues(infrastructure.StatusSuccess)))
	assert.Equal(t, float64(testutil.StatementSheetEvents), promtest.ToFloat64(f.metrics.EventsEmitted))
	assert.Equal(t, float64(testutil.StatementSheetEvents), promtest.ToFloat64(f.metrics.EventsPersisted))

	testutil.AssertLogContains(t, f.logs, slog.LevelInfo, "Company processed")
	testutil.AssertLogAttr(t, f.logs, "symbol", "ACME")
	testutil.AssertNoErrors(t, f.logs)
}

func TestIngestService_ReprocessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	for i := 0; i < 2; i++ {
		_, err := f.svc.ProcessFile(context.Background(), path, "ACME", IngestOptions{Persist: true})
		require.NoError(t, err)
	}
	assert.Equal(t, testutil.StatementSheetEvents, f.store.Len())

	events, err := f.svc.ListEvents(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Len(t, events, testutil.StatementSheetEvents)
}

func TestIngestService_ProcessWorkbook(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	report, err := f.svc.ProcessWorkbook(context.Background(), file, "ACME", IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, testutil.StatementSheetEvents, report.Events)
	assert.Zero(t, report.Persisted)
	assert.Empty(t, report.ReportPath)
	assert.Zero(t, f.store.Len())
}

func TestIngestService_DegradedSection(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, degradedSheet())

	report, err := f.svc.ProcessFile(context.Background(), path, "ACME", IngestOptions{Persist: true})
	require.NoError(t, err)

	assert.Equal(t, infrastructure.StatusDegraded, report.Status)
	assert.Equal(t, []string{string(dataprocessing.SectionQuarters)}, report.FailedSections)
	assert.Zero(t, report.QuarterlyPeriods)
	assert.NotZero(t, report.Persisted)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.SectionFailures.WithLabelValues(string(dataprocessing.SectionQuarters))))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CompaniesProcessed.WithLabelValues(infrastructure.StatusDegraded)))
}

func TestIngestService_Failures(t *testing.T) {
	missingRatio := testutil.StatementSheet()
	for _, row := range missingRatio {
		if len(row) > 0 && row[0] == "CASH FLOW:" {
			row[0] = "CASHFLOW"
		}
	}

	tests := []struct {
		name   string
		rows   [][]string
		sheet  string
		opts   IngestOptions
		assert func(t *testing.T, err error)
	}{
		{
			name:  "sheet missing",
			rows:  testutil.StatementSheet(),
			sheet: "Other",
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, dataprocessing.ErrSheetNotFound)
			},
		},
		{
			name:  "ratio input missing",
			rows:  missingRatio,
			sheet: testutil.ExportSheetName,
			assert: func(t *testing.T, err error) {
				assert.True(t, dataprocessing.IsRequiredColumnError(err))
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			path := testutil.WriteWorkbook(t, tt.sheet, tt.rows)

			report, err := f.svc.ProcessFile(context.Background(), path, "ACME", tt.opts)
			require.Error(t, err)
			tt.assert(t, err)

			require.NotNil(t, report)
			assert.Equal(t, infrastructure.StatusFailed, report.Status)
			assert.NotEmpty(t, report.Error)
			assert.Zero(t, f.store.Len())
			assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CompaniesProcessed.WithLabelValues(infrastructure.StatusFailed)))
			testutil.AssertLogContains(t, f.logs, slog.LevelError, "Company failed")
		})
	}
}

func TestIngestService_NotConfigured(t *testing.T) {
	svc := NewIngestService(IngestDeps{SheetName: testutil.ExportSheetName})
	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())
	ctx := context.Background()

	_, err := svc.ProcessFile(ctx, path, "ACME", IngestOptions{Persist: true})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.ProcessFile(ctx, path, "ACME", IngestOptions{Export: true})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.Refresh(ctx, "ACME", IngestOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.ListEvents(ctx, "ACME")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, svc.HasStore())

	report, err := svc.ProcessFile(ctx, path, "ACME", IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, testutil.StatementSheetEvents, report.Events)
}

func TestIngestService_Refresh(t *testing.T) {
	f := newFixture(t)
	f.fetcher.files["ACME"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	report, err := f.svc.Refresh(context.Background(), "ACME", IngestOptions{Persist: true})
	require.NoError(t, err)
	assert.Equal(t, testutil.StatementSheetEvents, report.Persisted)
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
}

func TestIngestService_RefreshFetchFailure(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Refresh(context.Background(), "NOPE", IngestOptions{})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNetwork, appErr.Type)
	assert.Equal(t, "NOPE", appErr.Symbol)
	assert.Equal(t, infrastructure.StatusFailed, report.Status)
}

func TestIngestService_RunBatch(t *testing.T) {
	f := newFixture(t)
	f.fetcher.files["ACME"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())
	f.fetcher.files["PART"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, degradedSheet())

	report, err := f.svc.RunBatch(context.Background(), []string{"ACME", "NOPE", "PART"}, IngestOptions{Persist: true, Export: true})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Companies, 3)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Degraded)

	assert.Equal(t, infrastructure.StatusSuccess, report.Companies[0].Status)
	assert.Equal(t, infrastructure.StatusFailed, report.Companies[1].Status)
	assert.Equal(t, infrastructure.StatusDegraded, report.Companies[2].Status)

	assert.Equal(t, filepath.Join(f.paths.ReportsDir, exporter.TrendSummaryFile), report.TrendsPath)
	assert.FileExists(t, report.TrendsPath)
	assert.Equal(t, int32(3), f.fetcher.calls.Load())

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err, "run id is the batch trace id")
	testutil.AssertLogContains(t, f.logs, slog.LevelInfo, "Batch finished")
}

func TestIngestService_RunBatchEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunBatch(context.Background(), nil, IngestOptions{})
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestIngestService_RunBatchCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.svc.RunBatch(ctx, []string{"ACME", "PART"}, IngestOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Companies)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestIngestService_FetchDelayPacesDownloads(t *testing.T) {
	f := newFixture(t)
	f.fetcher.files["ACME"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	delay := 150 * time.Millisecond
	svc := NewIngestService(IngestDeps{
		Fetcher:    f.fetcher,
		SheetName:  testutil.ExportSheetName,
		FetchDelay: delay,
	})

	start := time.Now()
	_, err := svc.RunBatch(context.Background(), []string{"ACME", "ACME", "ACME"}, IngestOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay-20*time.Millisecond)
}

func copyWorkbook(t *testing.T, src, dir, name string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestIngestService_ProcessDirectory(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	copyWorkbook(t, testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet()), dir, "export_acme.xlsx")
	copyWorkbook(t, testutil.WriteWorkbook(t, testutil.ExportSheetName, degradedSheet()), dir, "export_BETA.xlsx")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	report, err := f.svc.ProcessDirectory(context.Background(), dir, IngestOptions{Persist: true})
	require.NoError(t, err)

	require.Len(t, report.Companies, 2)
	assert.Equal(t, "ACME", report.Companies[0].Symbol)
	assert.Equal(t, "BETA", report.Companies[1].Symbol)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Degraded)
	assert.Zero(t, report.Failed)
	assert.Zero(t, f.fetcher.calls.Load(), "directory runs never download")

	events, err := f.store.ListEvents(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Len(t, events, testutil.StatementSheetEvents)
}

func TestIngestService_ProcessDirectoryEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessDirectory(context.Background(), t.TempDir(), IngestOptions{})
	assert.ErrorIs(t, err, ErrNoWorkbooks)

	_, err = f.svc.ProcessDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), IngestOptions{})
	assert.Error(t, err)
}
