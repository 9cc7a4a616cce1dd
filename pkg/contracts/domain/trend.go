package domain

import (
	"time"
)

// Trailing sales growth windows, in years
var SalesGrowthWindows = []int{10, 7, 5, 3}

// TrendSummary holds compound sales growth rates anchored at the latest annual period.
// A nil rate means the window could not be computed.
type TrendSummary struct {
	Symbol            string           `json:"symbol"`
	Timestamp         time.Time        `json:"timestamp"`
	SalesGrowth       map[int]*float64 `json:"sales_growth"`
	SalesGrowthRecent *float64         `json:"sales_growth_recent"`
}

// Growth returns the growth rate for a window in years
func (t *TrendSummary) Growth(years int) *float64 {
	if t == nil || t.SalesGrowth == nil {
		return nil
	}
	return t.SalesGrowth[years]
}
