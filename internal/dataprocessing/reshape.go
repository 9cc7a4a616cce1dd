package dataprocessing

import (
	"math"
	"strings"
	"time"

	"finsheet/pkg/contracts/domain"
)

// metricSuffixes is the suffix vocabulary recognised when splitting column names
var metricSuffixes = []SectionID{SectionPnL, SectionQuarters, SectionBalance, SectionCashFlow}

// SplitMetric splits a combined column into its metric name and section suffix.
// Columns without a known suffix are bare annual metrics and report ok=false.
func SplitMetric(column string) (string, SectionID, bool) {
	for _, suffix := range metricSuffixes {
		tail := "_" + string(suffix)
		if strings.HasSuffix(column, tail) && len(column) > len(tail) {
			return strings.TrimSpace(strings.TrimSuffix(column, tail)), suffix, true
		}
	}
	return strings.TrimSpace(column), "", false
}

// kindOfSuffix maps a column suffix to its period kind; bare columns are annual
func kindOfSuffix(suffix SectionID) PeriodKind {
	if suffix == SectionQuarters {
		return KindQuarterly
	}
	return KindAnnual
}

type observation struct {
	end    time.Time
	kind   PeriodKind
	metric string
	value  float64
}

// Reshape melts wide tables into long events. Missing and non-finite values are
// dropped. Period codes and fiscal types come from a fiscal-year map built from
// the annual observations. Output is sorted by timestamp then metric name.
func Reshape(symbol string, tables ...*WideTable) []domain.LongEvent {
	var obs []observation
	for _, table := range tables {
		if table == nil {
			continue
		}
		for _, row := range table.Rows {
			if row.Date.IsZero() {
				continue
			}
			for _, column := range table.Columns {
				v, ok := row.Values[column]
				if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				metric, suffix, _ := SplitMetric(column)
				obs = append(obs, observation{
					end:    row.Date,
					kind:   kindOfSuffix(suffix),
					metric: metric,
					value:  v,
				})
			}
		}
	}

	var annualEnds, allEnds []time.Time
	for _, o := range obs {
		allEnds = append(allEnds, o.end)
		if o.kind == KindAnnual {
			annualEnds = append(annualEnds, o.end)
		}
	}
	fiscalYears := BuildFiscalYearMap(annualEnds, allEnds)

	events := make([]domain.LongEvent, 0, len(obs))
	for _, o := range obs {
		code, fiscalType := fiscalYears.Resolve(o.kind, o.end)
		events = append(events, domain.LongEvent{
			Timestamp:   o.end,
			PeriodStart: PeriodStart(o.kind, o.end),
			PeriodEnd:   o.end,
			PeriodCode:  code,
			FiscalType:  fiscalType,
			MetricName:  o.metric,
			MetricValue: o.value,
			Symbol:      symbol,
		})
	}

	domain.SortEvents(events)

	return events
}
