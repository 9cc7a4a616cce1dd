package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the sheet holding the statements in a company export workbook
const DefaultSheetName = "Data Sheet"

// RawGrid is the unparsed sheet: rows of cell text, no header.
// Rows may be ragged; missing cells read as blank.
type RawGrid [][]string

// Cell returns the cell at row, col or "" when out of range
func (g RawGrid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	if col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// Width returns the number of columns of the widest row
func (g RawGrid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// LoadWorkbook opens an export workbook and reads the named sheet into a RawGrid
func LoadWorkbook(filePath, sheet string) (RawGrid, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// ReadWorkbook reads the named sheet of a workbook streamed from r
func ReadWorkbook(r io.Reader, sheet string) (RawGrid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) (RawGrid, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrSheetNotFound, sheet, f.GetSheetList())
	}

	// Raw values keep numbers free of display formatting and dates as serials
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %q: %w", sheet, err)
	}

	slog.Debug("Workbook sheet loaded",
		slog.String("sheet_name", sheet),
		slog.Int("total_rows", len(rows)))

	return RawGrid(rows), nil
}
