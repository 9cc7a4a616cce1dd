package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ExportSheetName is the sheet carrying the statements in an export workbook
const ExportSheetName = "Data Sheet"

// StatementSheet returns a trimmed company export sheet with two annual
// periods (fiscal year ending March) and three quarters.
//
// Annual 2023-03-31: sales 1200, expenses 790, net profit 180, 10 Cr shares,
// price 1800. Quarters end 2022-12-31, 2023-03-31 and 2023-06-30.
func StatementSheet() [][]string {
	return [][]string{
		{"COMPANY NAME", "ACME INDUSTRIES"},
		{},
		{"PROFIT & LOSS"},
		{"Report Date", "2022-03-31", "2023-03-31"},
		{"Sales", "1000", "1,200"},
		{"Raw Material Cost", "400", "500"},
		{"Change in Inventory", "10", "20"},
		{"Power and Fuel", "50", "60"},
		{"Other Mfr. Exp", "30", "40"},
		{"Employee Cost", "100", "110"},
		{"Selling and admin", "60", "70"},
		{"Other Expenses", "20", "30"},
		{"Net profit", "150", "180"},
		{"Dividend Amount", "30", "45"},
		{},
		{"Quarters"},
		{"Report Date", "2022-12-31", "2023-03-31", "2023-06-30"},
		{"Sales", "300", "320", "310"},
		{"Operating Profit", "40", "48", "0"},
		{},
		{"BALANCE SHEET"},
		{"Report Date", "2022-03-31", "2023-03-31"},
		{"Equity Share Capital", "50", "50"},
		{"Reserves", "450", "550"},
		{"Other Liabilities", "200", "220"},
		{"Total", "700", "820"},
		{"Other Assets", "300", "350"},
		{"Receivables", "100", "120"},
		{"Inventory", "80", "96"},
		{"Total", "700", "820"},
		{"CASH FLOW:"},
		{"Report Date", "2022-03-31", "2023-03-31"},
		{"Cash from Operating Activity", "120", "150"},
		{"PRICE:", "1500", "1800"},
		{"DERIVED:"},
		{"Adjusted Equity Shares in Cr", "10", "10"},
	}
}

// StatementSheetEvents is the number of long events StatementSheet reshapes
// into: 29 annual columns over 2 periods and 3 quarterly columns over 3 periods
const StatementSheetEvents = 29*2 + 3*3

// WriteWorkbook saves rows as the named sheet of a new workbook in a test
// temp dir and returns its path
func WriteWorkbook(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}

	for r, row := range rows {
		if len(row) == 0 {
			continue
		}
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("write row %d: %v", r+1, err)
		}
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}
