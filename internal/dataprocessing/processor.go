package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"

	"finsheet/pkg/contracts/domain"
)

// Result is the output of one company's pipeline run
type Result struct {
	Symbol           string
	Events           []domain.LongEvent
	Trends           *domain.TrendSummary
	SectionErrors    []*SectionParseError
	AnnualPeriods    int
	QuarterlyPeriods int
}

// FailedSections returns the ids of sections that could not be parsed
func (r *Result) FailedSections() []SectionID {
	ids := make([]SectionID, 0, len(r.SectionErrors))
	for _, e := range r.SectionErrors {
		ids = append(ids, e.Section)
	}
	return ids
}

// Processor turns a raw export sheet into long events for one company
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new processor
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger.With(slog.String("component", "processor"))}
}

// Process runs sections → wide tables → trends → long events. Section failures
// degrade the output; a missing ratio input column aborts the run.
func (p *Processor) Process(ctx context.Context, grid RawGrid, symbol string) (*Result, error) {
	logger := p.logger.With(slog.String("symbol", symbol))

	sections, failures := ExtractAll(grid, logger)

	annual, err := CombineAnnual(sections)
	if err != nil {
		return nil, fmt.Errorf("combine annual statements for %s: %w", symbol, err)
	}
	quarterly, err := CombineQuarterly(sections)
	if err != nil {
		return nil, fmt.Errorf("combine quarterly results for %s: %w", symbol, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Symbol:           symbol,
		Trends:           CalculateTrends(annual, symbol),
		Events:           Reshape(symbol, annual, quarterly),
		SectionErrors:    failures,
		AnnualPeriods:    annual.Len(),
		QuarterlyPeriods: quarterly.Len(),
	}

	logger.InfoContext(ctx, "Sheet processed",
		slog.Int("annual_periods", result.AnnualPeriods),
		slog.Int("quarterly_periods", result.QuarterlyPeriods),
		slog.Int("events", len(result.Events)),
		slog.Int("failed_sections", len(failures)))

	if n := unresolvedQuarters(result.Events); n > 0 {
		logger.WarnContext(ctx, "Quarterly periods outside the fiscal calendar",
			slog.Int("events", n),
			slog.String("period_code", string(domain.PeriodCodeUnresolved)))
	}

	return result, nil
}

func unresolvedQuarters(events []domain.LongEvent) int {
	n := 0
	for _, ev := range events {
		if ev.PeriodCode != domain.PeriodCodeAnnual && !ev.PeriodCode.IsQuarter() {
			n++
		}
	}
	return n
}

// ProcessFile loads the export workbook at path and processes it
func (p *Processor) ProcessFile(ctx context.Context, path, sheet, symbol string) (*Result, error) {
	grid, err := LoadWorkbook(path, sheet)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, grid, symbol)
}
