package domain

import (
	"sort"
	"time"
)

// PeriodCode classifies a reporting interval
type PeriodCode string

const (
	PeriodCodeAnnual PeriodCode = "A"
	PeriodCodeQ1     PeriodCode = "Q1"
	PeriodCodeQ2     PeriodCode = "Q2"
	PeriodCodeQ3     PeriodCode = "Q3"
	PeriodCodeQ4     PeriodCode = "Q4"

	// PeriodCodeUnresolved marks a quarterly row whose end month fits none of
	// the four quarter-end months of its fiscal convention.
	PeriodCodeUnresolved PeriodCode = "Q"
)

// IsQuarter reports whether the code is a resolved fiscal quarter
func (p PeriodCode) IsQuarter() bool {
	switch p {
	case PeriodCodeQ1, PeriodCodeQ2, PeriodCodeQ3, PeriodCodeQ4:
		return true
	}
	return false
}

// FiscalType is the fiscal-year-end convention in effect for a year
type FiscalType string

const (
	FiscalTypeMarch    FiscalType = "FY-MAR"
	FiscalTypeDecember FiscalType = "FY-DEC"
)

// LongEvent is one (metric, period) observation of a company.
// The upsert key is (Symbol, Timestamp, PeriodCode, MetricName).
type LongEvent struct {
	Timestamp   time.Time  `json:"timestamp" db:"timestamp"`
	PeriodStart time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time  `json:"period_end" db:"period_end"`
	PeriodCode  PeriodCode `json:"period_code" db:"period_code"`
	FiscalType  FiscalType `json:"fiscal_type" db:"fiscal_type"`
	MetricName  string     `json:"metric_name" db:"metric_name"`
	MetricValue float64    `json:"metric_value" db:"metric_value"`
	Symbol      string     `json:"symbol" db:"symbol"`
}

// EventKey identifies a LongEvent for idempotent persistence
type EventKey struct {
	Symbol     string
	Timestamp  time.Time
	PeriodCode PeriodCode
	MetricName string
}

// Key returns the uniqueness key of the event
func (e LongEvent) Key() EventKey {
	return EventKey{
		Symbol:     e.Symbol,
		Timestamp:  e.Timestamp.UTC(),
		PeriodCode: e.PeriodCode,
		MetricName: e.MetricName,
	}
}

// SortEvents orders events by timestamp, then metric name, then period code
func SortEvents(events []LongEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.MetricName != b.MetricName {
			return a.MetricName < b.MetricName
		}
		return a.PeriodCode < b.PeriodCode
	})
}
