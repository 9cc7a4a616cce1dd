package exporter

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"finsheet/internal/config"
	"finsheet/pkg/contracts/domain"
)

// EventHeaders is the column order of long-event CSV files
var EventHeaders = []string{
	"timestamp", "period_start", "period_end", "period_code",
	"fiscal_type", "metric_name", "metric_value", "symbol",
}

// TrendSummaryFile is the report name of the batch trend summary
const TrendSummaryFile = "trend_summary.csv"

// EventExporter writes long events and trend summaries as CSV
type EventExporter struct {
	csvWriter *CSVWriter
}

// NewEventExporter creates an exporter on top of a CSV writer
func NewEventExporter(w *CSVWriter) *EventExporter {
	return &EventExporter{csvWriter: w}
}

// ExportEvents streams one company's events into <reports>/<symbol>_timeseries.csv
// and returns the path written
func (e *EventExporter) ExportEvents(symbol string, events []domain.LongEvent) (path string, err error) {
	path = e.csvWriter.resolvePath(config.EventsReportName(symbol))
	sw, err := e.csvWriter.CreateStreamWriter(path, EventHeaders)
	if err != nil {
		return "", fmt.Errorf("failed to export events for %s: %w", symbol, err)
	}
	defer func() {
		if cerr := sw.Close(); err == nil && cerr != nil {
			path, err = "", fmt.Errorf("failed to export events for %s: %w", symbol, cerr)
		}
	}()

	for i := range events {
		if err := sw.WriteRecord(eventRecord(events[i])); err != nil {
			return "", fmt.Errorf("failed to export events for %s: %w", symbol, err)
		}
	}
	return path, nil
}

// WriteEvents encodes events to out without a BOM
func WriteEvents(out io.Writer, events []domain.LongEvent) error {
	return writeRecords(out, WriteOptions{Headers: EventHeaders, Records: eventRecords(events)})
}

func eventRecords(events []domain.LongEvent) [][]string {
	records := make([][]string, 0, len(events))
	for i := range events {
		records = append(records, eventRecord(events[i]))
	}
	return records
}

func eventRecord(ev domain.LongEvent) []string {
	return []string{
		formatDate(ev.Timestamp),
		formatDate(ev.PeriodStart),
		formatDate(ev.PeriodEnd),
		string(ev.PeriodCode),
		string(ev.FiscalType),
		ev.MetricName,
		formatFloat(ev.MetricValue),
		ev.Symbol,
	}
}

// TrendHeaders returns the trend summary columns, longest window first
func TrendHeaders() []string {
	headers := []string{"symbol", "timestamp"}
	for _, years := range domain.SalesGrowthWindows {
		headers = append(headers, "sales_growth_"+strconv.Itoa(years)+"y")
	}
	return append(headers, "sales_growth_recent")
}

// ExportTrends writes one row per company, sorted by symbol, and returns the path written
func (e *EventExporter) ExportTrends(summaries []*domain.TrendSummary) (string, error) {
	rows := make([]*domain.TrendSummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	records := make([][]string, 0, len(rows))
	for _, s := range rows {
		record := []string{s.Symbol, formatDate(s.Timestamp)}
		for _, years := range domain.SalesGrowthWindows {
			record = append(record, formatOptionalFloat(s.Growth(years)))
		}
		records = append(records, append(record, formatOptionalFloat(s.SalesGrowthRecent)))
	}

	path := e.csvWriter.resolvePath(TrendSummaryFile)
	if err := e.csvWriter.WriteCSV(path, WriteOptions{Headers: TrendHeaders(), Records: records, BOMPrefix: true}); err != nil {
		return "", fmt.Errorf("failed to export trend summary: %w", err)
	}
	return path, nil
}
