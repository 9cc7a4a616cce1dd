package dataprocessing

import (
	"sort"
	"time"

	"finsheet/pkg/contracts/domain"
)

// DefaultFiscalYearEnd applies to years older than any annual evidence
const DefaultFiscalYearEnd = time.March

// Quarter codes by quarter-end month for each fiscal-year-end convention
var (
	marchQuarters = map[time.Month]domain.PeriodCode{
		time.June:      domain.PeriodCodeQ1,
		time.September: domain.PeriodCodeQ2,
		time.December:  domain.PeriodCodeQ3,
		time.March:     domain.PeriodCodeQ4,
	}
	decemberQuarters = map[time.Month]domain.PeriodCode{
		time.March:     domain.PeriodCodeQ1,
		time.June:      domain.PeriodCodeQ2,
		time.September: domain.PeriodCodeQ3,
		time.December:  domain.PeriodCodeQ4,
	}
)

// FiscalYearMap maps a calendar year to the month its fiscal year ends
type FiscalYearMap map[int]time.Month

// BuildFiscalYearMap derives the fiscal-year-end month of every year present in
// allEnds. A year's month is the month of its latest annual period end; years
// without annual evidence inherit the last known month, and years before any
// evidence get DefaultFiscalYearEnd.
func BuildFiscalYearMap(annualEnds, allEnds []time.Time) FiscalYearMap {
	evidence := make(map[int]time.Time)
	years := make(map[int]bool)

	for _, end := range annualEnds {
		y := end.Year()
		years[y] = true
		if latest, ok := evidence[y]; !ok || end.After(latest) {
			evidence[y] = end
		}
	}
	for _, end := range allEnds {
		years[end.Year()] = true
	}

	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)

	fm := make(FiscalYearMap, len(sorted))
	last := DefaultFiscalYearEnd
	for _, y := range sorted {
		if end, ok := evidence[y]; ok {
			last = end.Month()
		}
		fm[y] = last
	}
	return fm
}

// YearEnd returns the fiscal-year-end month for the year of t
func (fm FiscalYearMap) YearEnd(t time.Time) time.Month {
	if m, ok := fm[t.Year()]; ok {
		return m
	}
	return DefaultFiscalYearEnd
}

// Resolve assigns the period code and fiscal type of a period ending at periodEnd
func (fm FiscalYearMap) Resolve(kind PeriodKind, periodEnd time.Time) (domain.PeriodCode, domain.FiscalType) {
	yearEnd := fm.YearEnd(periodEnd)
	fiscalType := fiscalTypeOf(yearEnd)

	if kind != KindQuarterly {
		return domain.PeriodCodeAnnual, fiscalType
	}

	quarters := decemberQuarters
	if fiscalType == domain.FiscalTypeMarch {
		quarters = marchQuarters
	}
	code, ok := quarters[periodEnd.Month()]
	if !ok {
		return domain.PeriodCodeUnresolved, fiscalType
	}
	return code, fiscalType
}

func fiscalTypeOf(yearEnd time.Month) domain.FiscalType {
	if yearEnd == time.March {
		return domain.FiscalTypeMarch
	}
	return domain.FiscalTypeDecember
}

// PeriodStart returns the first day of the reporting window ending at periodEnd:
// a 3-month window for quarters and a 12-month window for annual periods
func PeriodStart(kind PeriodKind, periodEnd time.Time) time.Time {
	back := 11
	if kind == KindQuarterly {
		back = 2
	}
	return time.Date(periodEnd.Year(), periodEnd.Month()-time.Month(back), 1, 0, 0, 0, 0, periodEnd.Location())
}
