package dataprocessing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// MissingCellFill replaces section cells that are blank or not numeric.
// Ratio arithmetic never sees a missing section cell.
const MissingCellFill = 0.0

const reportDateLayout = "2006-01-02"

// ParseNumber coerces a cell to float64 after stripping thousands separators
// and surrounding whitespace. Blank, NaN and infinite cells are missing.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// normalizeCell applies the zero-fill policy on top of ParseNumber
func normalizeCell(cell string) float64 {
	if v, ok := ParseNumber(cell); ok {
		return v
	}
	return MissingCellFill
}

// ParseReportDate parses a period header cell. It accepts YYYY-MM-DD, optionally
// followed by a time part, and Excel date serials as produced by raw cell reads.
func ParseReportDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}

	if len(s) >= len(reportDateLayout) {
		if t, err := time.Parse(reportDateLayout, s[:len(reportDateLayout)]); err == nil {
			rest := s[len(reportDateLayout):]
			if rest == "" || rest[0] == ' ' || rest[0] == 'T' {
				return t, true
			}
		}
	}

	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}
