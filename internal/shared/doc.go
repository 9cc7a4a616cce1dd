// Package shared holds code used across packages that belongs to no single
// layer. Its testutil subpackage provides the captured slog handler and the
// export workbook fixtures the package tests build on:
//
//	logger, logs := testutil.NewTestLogger(t)
//	path := testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())
//
// Nothing here may import a domain package.
package shared
