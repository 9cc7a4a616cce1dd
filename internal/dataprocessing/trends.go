package dataprocessing

import (
	"math"
	"sort"

	"finsheet/pkg/contracts/domain"
)

// recentIntervals is the number of intervals of the RECENT growth window (3 points)
const recentIntervals = 2

// CalculateTrends computes the compound growth of annual sales over the trailing
// windows, anchored at the latest period. It returns nil for an empty table.
func CalculateTrends(annual *WideTable, symbol string) *domain.TrendSummary {
	if annual.Len() == 0 {
		return nil
	}

	rows := make([]WideRow, len(annual.Rows))
	copy(rows, annual.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	sales := make([]float64, len(rows))
	for i, row := range rows {
		sales[i] = row.Get(ColSales)
	}

	last := len(sales) - 1
	summary := &domain.TrendSummary{
		Symbol:      symbol,
		Timestamp:   rows[last].Date,
		SalesGrowth: make(map[int]*float64, len(domain.SalesGrowthWindows)),
	}

	for _, years := range domain.SalesGrowthWindows {
		start := last - years
		if start < 0 {
			start = 0
		}
		summary.SalesGrowth[years] = compoundGrowth(sales[start], sales[last], last-start)
	}

	if len(sales) >= recentIntervals+1 {
		summary.SalesGrowthRecent = compoundGrowth(sales[last-recentIntervals], sales[last], recentIntervals)
	}

	return summary
}

// compoundGrowth returns ((latest/start)^(1/intervals) - 1) as a percentage
// rounded to 2 decimals, or nil when the window is undefined
func compoundGrowth(start, latest float64, intervals int) *float64 {
	if intervals <= 0 {
		return nil
	}
	if math.IsNaN(start) || math.IsNaN(latest) || !(start > 0) {
		return nil
	}
	growth := math.Pow(latest/start, 1/float64(intervals)) - 1
	pct := round(growth*100, 2)
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil
	}
	return &pct
}
