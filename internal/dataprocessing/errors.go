package dataprocessing

import (
	"errors"
	"fmt"
)

var (
	// ErrSheetNotFound is returned when the workbook has no sheet with the requested name
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrMarkerNotFound is returned when a section start marker is absent from the grid
	ErrMarkerNotFound = errors.New("section start marker not found")
	// ErrReportDateMissing is returned when a section header lacks the Report Date label column
	ErrReportDateMissing = errors.New("report date column not found")
)

// SectionParseError reports a section that could not be parsed.
// It is recovered locally: sibling sections are still parsed.
type SectionParseError struct {
	Section SectionID
	Err     error
}

func (e *SectionParseError) Error() string {
	return fmt.Sprintf("parse section %s: %v", e.Section, e.Err)
}

func (e *SectionParseError) Unwrap() error {
	return e.Err
}

// RequiredColumnError reports a ratio input column absent from a combined table.
// It aborts the company's run.
type RequiredColumnError struct {
	Column string
	Kind   PeriodKind
}

func (e *RequiredColumnError) Error() string {
	return fmt.Sprintf("required column %q missing from %s table", e.Column, e.Kind)
}

// IsRequiredColumnError reports whether err carries a RequiredColumnError
func IsRequiredColumnError(err error) bool {
	var rc *RequiredColumnError
	return errors.As(err, &rc)
}
