package exporter

import (
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// formatFloat writes the shortest decimal that round-trips the value
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatOptionalFloat leaves an undefined rate as an empty cell
func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
