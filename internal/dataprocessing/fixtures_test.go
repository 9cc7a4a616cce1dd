package dataprocessing

import (
	"testing"
	"time"

	"finsheet/internal/shared/testutil"
)

func sampleSheet() RawGrid {
	return RawGrid(testutil.StatementSheet())
}

func writeWorkbook(t *testing.T, sheet string, grid RawGrid) string {
	t.Helper()
	return testutil.WriteWorkbook(t, sheet, grid)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
