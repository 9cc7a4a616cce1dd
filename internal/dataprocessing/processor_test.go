package dataprocessing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheet/internal/shared/testutil"
	"finsheet/pkg/contracts/domain"
)

func TestProcessor_Process(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	p := NewProcessor(logger)

	result, err := p.Process(context.Background(), sampleSheet(), "ACC")
	require.NoError(t, err)

	assert.Equal(t, "ACC", result.Symbol)
	assert.Len(t, result.Events, testutil.StatementSheetEvents)
	assert.Empty(t, result.SectionErrors)
	assert.Empty(t, result.FailedSections())
	assert.Equal(t, 2, result.AnnualPeriods)
	assert.Equal(t, 3, result.QuarterlyPeriods)

	require.NotNil(t, result.Trends)
	require.NotNil(t, result.Trends.Growth(3))
	assert.InDelta(t, 20.0, *result.Trends.Growth(3), 1e-9)

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Sheet processed")
	testutil.AssertLogAttr(t, handler, "symbol", "ACC")
	testutil.AssertNoErrors(t, handler)
}

func TestProcessor_SectionFailureDegrades(t *testing.T) {
	grid := sampleSheet()
	for r := range grid {
		if grid.Cell(r, 0) == "Quarters" {
			grid[r][0] = "Quarterly Results"
		}
	}
	// The pnl section now runs into the quarterly block; its labels become pnl metrics
	logger, handler := testutil.NewTestLogger(t)

	result, err := NewProcessor(logger).Process(context.Background(), grid, "ACC")
	require.NoError(t, err)

	assert.Equal(t, []SectionID{SectionQuarters}, result.FailedSections())
	assert.Equal(t, 0, result.QuarterlyPeriods)
	assert.Equal(t, 2, result.AnnualPeriods)
	assert.NotEmpty(t, result.Events)
	testutil.AssertLogContains(t, handler, slog.LevelError, "Unable to parse section")
}

func TestProcessor_MissingRatioInputAborts(t *testing.T) {
	grid := sampleSheet()
	for r := range grid {
		if grid.Cell(r, 0) == "CASH FLOW:" {
			grid[r][0] = "CASHFLOW"
		}
	}

	result, err := NewProcessor(nil).Process(context.Background(), grid, "ACC")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsRequiredColumnError(err))
	assert.Contains(t, err.Error(), "ACC")
}

func TestProcessor_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(nil).Process(ctx, sampleSheet(), "ACC")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessor_ProcessFile(t *testing.T) {
	path := writeWorkbook(t, DefaultSheetName, sampleSheet())

	result, err := NewProcessor(nil).ProcessFile(context.Background(), path, DefaultSheetName, "ACC")
	require.NoError(t, err)
	assert.Len(t, result.Events, testutil.StatementSheetEvents)
}

func TestProcessor_ProcessFileSheetMissing(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", sampleSheet())

	_, err := NewProcessor(nil).ProcessFile(context.Background(), path, DefaultSheetName, "ACC")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestUnresolvedQuarters(t *testing.T) {
	events := []domain.LongEvent{
		{PeriodCode: domain.PeriodCodeAnnual},
		{PeriodCode: domain.PeriodCodeQ2},
		{PeriodCode: domain.PeriodCodeUnresolved},
	}
	assert.Equal(t, 1, unresolvedQuarters(events))
	assert.Zero(t, unresolvedQuarters(nil))
}
