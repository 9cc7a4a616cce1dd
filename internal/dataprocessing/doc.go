// Package dataprocessing turns a company's financial statement export sheet into a
// normalized long time series of named metrics.
//
// # Architecture
//
// The package is organized as a chain of pure steps:
//
// 1. Parser: reads the "Data Sheet" of an export workbook into a RawGrid
// 2. Section Extractor: slices the four labeled statement blocks and transposes them
// 3. Wide Combiner: joins sections per period and derives the ratio columns
// 4. Trend Calculator: compound sales growth over trailing windows
// 5. Fiscal Period Resolver: fiscal-year-end per year and quarter codes
// 6. Reshaper: melts wide tables into LongEvent rows
//
// # Usage
//
//	grid, err := dataprocessing.LoadWorkbook("reports/export_ACC.xlsx", dataprocessing.DefaultSheetName)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := dataprocessing.NewProcessor(logger).Process(ctx, grid, "ACC")
//
// # Data Flow
//
//	Workbook → RawGrid → Sections (×4) → WideTable (annual, quarterly) → LongEvents
//	                                          └→ TrendSummary
//
// # Error Handling
//
// A section that cannot be parsed is logged and reported as a SectionParseError;
// the other sections are still used. Cells that are not numeric are zero-filled
// before ratio arithmetic and dropped after the melt. A ratio input column missing
// from the combined table is a RequiredColumnError and aborts the company's run.
//
// # Ratio Policy
//
// Guarded ratios write RatioFallback (0) when their denominator or condition is not
// positive. yearly_OPM and ROE round to 2 decimals and then to a whole percent.
package dataprocessing
