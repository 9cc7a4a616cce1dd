// Package exporter writes pipeline output as CSV.
//
// CSVWriter is the file layer: headers, append mode, streaming and an optional
// UTF-8 BOM for spreadsheet applications. EventExporter lays long events out as
//
//	timestamp,period_start,period_end,period_code,fiscal_type,metric_name,metric_value,symbol
//
// with ISO dates, one file per company under the reports directory, and writes
// the batch trend summary (one row per company, empty cells for undefined rates).
package exporter
