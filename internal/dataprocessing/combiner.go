package dataprocessing

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	priceSourceColumn   = "price:_cashflow"
	derivedSourceColumn = "derived:_cashflow"
)

// AnnualSections and QuarterlySections list the sections joined into each wide table
var (
	AnnualSections    = []SectionID{SectionPnL, SectionBalance, SectionCashFlow}
	QuarterlySections = []SectionID{SectionQuarters}
)

// WideRow is one period of a combined table. Absent values read as NaN.
type WideRow struct {
	Date   time.Time
	Kind   PeriodKind
	Values map[string]float64
}

// Get returns the value of a column, NaN when the period has none
func (r WideRow) Get(column string) float64 {
	v, ok := r.Values[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// WideTable is one row per period and one column per section-suffixed metric,
// plus the derived ratio columns
type WideTable struct {
	Kind    PeriodKind
	Columns []string
	Rows    []WideRow
}

// Len returns the number of periods
func (t *WideTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table defines the column
func (t *WideTable) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Column returns the values of a column in row order
func (t *WideTable) Column(column string) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Get(column)
	}
	return out
}

func (t *WideTable) addColumn(column string, fn func(WideRow) float64) {
	if !t.HasColumn(column) {
		t.Columns = append(t.Columns, column)
	}
	for i := range t.Rows {
		t.Rows[i].Values[column] = fn(t.Rows[i])
	}
}

func (t *WideTable) requireColumns(columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return &RequiredColumnError{Column: c, Kind: t.Kind}
		}
	}
	return nil
}

// CombineAnnual joins the profit & loss, balance sheet and cash flow sections
// and derives the annual ratio columns.
func CombineAnnual(sections Sections) (*WideTable, error) {
	table := combine(sections, AnnualSections, KindAnnual)
	if err := table.requireColumns(annualRequiredColumns...); err != nil {
		return nil, err
	}
	deriveAnnual(table)
	return table, nil
}

// CombineQuarterly builds the quarterly table. A sheet without a quarterly
// section yields an empty table.
func CombineQuarterly(sections Sections) (*WideTable, error) {
	table := combine(sections, QuarterlySections, KindQuarterly)
	if sections[SectionQuarters] == nil {
		return table, nil
	}
	if err := table.requireColumns(quarterlyRequiredColumns...); err != nil {
		return nil, err
	}
	deriveQuarterly(table)
	return table, nil
}

// combine lower-cases and suffixes every metric label, then outer-joins the
// sections on period date
func combine(sections Sections, ids []SectionID, kind PeriodKind) *WideTable {
	table := &WideTable{Kind: kind}
	seenCols := make(map[string]bool)
	byDate := make(map[time.Time]*WideRow)

	for _, id := range ids {
		section := sections[id]
		if section == nil {
			continue
		}

		names := make(map[string]string, len(section.Columns))
		for _, label := range section.Columns {
			name, ok := combinedColumnName(label, id)
			if !ok {
				continue
			}
			names[label] = name
			if !seenCols[name] {
				seenCols[name] = true
				table.Columns = append(table.Columns, name)
			}
		}

		for _, period := range section.Rows {
			if period.Date.IsZero() {
				continue
			}
			row, ok := byDate[period.Date]
			if !ok {
				row = &WideRow{Date: period.Date, Kind: kind, Values: make(map[string]float64)}
				byDate[period.Date] = row
			}
			for label, v := range period.Values {
				if name, ok := names[label]; ok {
					row.Values[name] = v
				}
			}
		}
	}

	table.Rows = make([]WideRow, 0, len(byDate))
	for _, row := range byDate {
		table.Rows = append(table.Rows, *row)
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		return table.Rows[i].Date.Before(table.Rows[j].Date)
	})

	return table
}

func combinedColumnName(label string, id SectionID) (string, bool) {
	name := strings.ToLower(label) + "_" + string(id)
	switch name {
	case priceSourceColumn:
		return ColPrice, true
	case derivedSourceColumn:
		return "", false
	}
	return name, true
}
