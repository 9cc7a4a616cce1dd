package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// SectionID names a statement block of the export sheet. It is also the
// suffix appended to the block's metric columns.
type SectionID string

const (
	SectionPnL      SectionID = "pnl"
	SectionQuarters SectionID = "quarters"
	SectionBalance  SectionID = "balance"
	SectionCashFlow SectionID = "cashflow"
)

// PeriodKind is the provisional period tag of a combined table
type PeriodKind string

const (
	KindAnnual    PeriodKind = "A"
	KindQuarterly PeriodKind = "Q"
)

func (k PeriodKind) String() string {
	if k == KindQuarterly {
		return "quarterly"
	}
	return "annual"
}

const (
	reportDateLabel = "Report Date"
	totalLabel      = "Total"
)

// SectionSpec locates one section inside the sheet. The section spans from the
// row after StartMarker up to (not including) EndMarker, or to the end of the grid.
type SectionSpec struct {
	ID          SectionID
	StartMarker string
	EndMarker   string
	Kind        PeriodKind
}

// SectionSchema is the fixed layout vocabulary of the export sheet
var SectionSchema = []SectionSpec{
	{ID: SectionPnL, StartMarker: "PROFIT & LOSS", EndMarker: "Quarters", Kind: KindAnnual},
	{ID: SectionBalance, StartMarker: "BALANCE SHEET", EndMarker: "CASH FLOW:", Kind: KindAnnual},
	{ID: SectionQuarters, StartMarker: "Quarters", EndMarker: "BALANCE SHEET", Kind: KindQuarterly},
	{ID: SectionCashFlow, StartMarker: "CASH FLOW:", EndMarker: " Adjusted Equity Shares in Cr", Kind: KindAnnual},
}

// PeriodRow is one reporting period of a section
type PeriodRow struct {
	Date   time.Time
	Values map[string]float64
}

// PeriodTable is a transposed section: one row per period, one column per metric label
type PeriodTable struct {
	Section SectionID
	Columns []string
	Rows    []PeriodRow
}

// Len returns the number of periods
func (t *PeriodTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Sections holds the parsed sections of one sheet
type Sections map[SectionID]*PeriodTable

// ExtractAll parses every section of SectionSchema. A failing section is logged
// and reported but never stops its siblings.
func ExtractAll(grid RawGrid, logger *slog.Logger) (Sections, []*SectionParseError) {
	if logger == nil {
		logger = slog.Default()
	}

	sections := make(Sections, len(SectionSchema))
	var failures []*SectionParseError

	for _, spec := range SectionSchema {
		table, err := ExtractSection(grid, spec)
		if err != nil {
			logger.Error("Unable to parse section",
				slog.String("section", string(spec.ID)),
				slog.String("error", err.Error()))
			failures = append(failures, err)
			continue
		}

		logger.Debug("Section parsed",
			slog.String("section", string(spec.ID)),
			slog.Int("periods", table.Len()),
			slog.Int("metrics", len(table.Columns)))
		sections[spec.ID] = table
	}

	return sections, failures
}

// ExtractSection slices one section out of the grid and transposes it so that
// periods become rows.
func ExtractSection(grid RawGrid, spec SectionSpec) (*PeriodTable, *SectionParseError) {
	fail := func(err error) *SectionParseError {
		return &SectionParseError{Section: spec.ID, Err: err}
	}

	start := findMarker(grid, spec.StartMarker, 0)
	if start < 0 {
		return nil, fail(fmt.Errorf("%w: %q", ErrMarkerNotFound, spec.StartMarker))
	}

	headerRow := start + 1
	if headerRow >= len(grid) {
		return nil, fail(fmt.Errorf("%w: no header row after %q", ErrReportDateMissing, spec.StartMarker))
	}

	end := len(grid)
	if spec.EndMarker != "" {
		if i := findMarker(grid, spec.EndMarker, headerRow+1); i >= 0 {
			end = i
		}
	}

	width := 0
	for r := headerRow; r < end; r++ {
		if len(grid[r]) > width {
			width = len(grid[r])
		}
	}

	headers := make([]string, width)
	for c := range headers {
		headers[c] = grid.Cell(headerRow, c)
	}
	headers = MakeUniqueNames(headers)

	labelCol := -1
	for c, h := range headers {
		if h == reportDateLabel {
			labelCol = c
			break
		}
	}
	if labelCol < 0 {
		return nil, fail(fmt.Errorf("%w in %s section", ErrReportDateMissing, spec.ID))
	}

	// Metric rows, skipping rows that are entirely blank or carry no label
	var bodyRows []int
	var labels []string
	for r := headerRow + 1; r < end; r++ {
		if isBlankRow(grid[r]) {
			continue
		}
		label := strings.TrimSpace(grid.Cell(r, labelCol))
		if label == "" {
			continue
		}
		bodyRows = append(bodyRows, r)
		labels = append(labels, label)
	}

	// After the transpose labels are the columns; Total is a layout artifact
	keep := make([]int, 0, len(labels))
	kept := make([]string, 0, len(labels))
	for i, label := range labels {
		if label == totalLabel {
			continue
		}
		keep = append(keep, bodyRows[i])
		kept = append(kept, label)
	}
	columns := MakeUniqueNames(kept)

	table := &PeriodTable{Section: spec.ID, Columns: columns}
	for c, h := range headers {
		if c == labelCol {
			continue
		}
		date, ok := ParseReportDate(h)
		if !ok {
			continue
		}
		row := PeriodRow{Date: date, Values: make(map[string]float64, len(columns))}
		for i, r := range keep {
			row.Values[columns[i]] = normalizeCell(grid.Cell(r, c))
		}
		table.Rows = append(table.Rows, row)
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Date.Before(table.Rows[j].Date)
	})

	return table, nil
}

// MakeUniqueNames disambiguates repeated names by appending .1, .2, ... in order
// of appearance. The first occurrence keeps the bare name.
func MakeUniqueNames(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			out[i] = fmt.Sprintf("%s.%d", name, n+1)
			continue
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

func findMarker(grid RawGrid, marker string, from int) int {
	for r := from; r < len(grid); r++ {
		if grid.Cell(r, 0) == marker {
			return r
		}
	}
	return -1
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
