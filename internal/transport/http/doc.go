// Package http implements the HTTP handlers of the finsheet API. Handlers only
// parse and validate requests and shape responses; the pipeline itself lives
// in the services package.
//
// # Routes
//
//	GET  /api/health                       liveness summary
//	GET  /api/health/ready                 data dir and store checks (503 when not ready)
//	GET  /api/health/live                  runtime stats
//	GET  /api/version                      build information
//	POST /api/v1/ingest?symbol=&persist=   multipart "file" holding an export workbook
//	POST /api/v1/refresh                   {"symbols": [...]} batch download and process
//	POST /api/v1/symbols/{symbol}/refresh  download and process one company
//	GET  /api/v1/symbols/{symbol}/events   persisted long events, ?format=csv for CSV
//
// # Errors
//
// Every failure is written by errors.ErrorHandler as RFC 7807 problem details:
//
//	{
//	    "type": "/errors/workbook/required-column",
//	    "title": "Required Column Missing",
//	    "status": 422,
//	    "detail": "required column \"Sales_pnl\" missing from annual table",
//	    "instance": "/api/v1/ingest",
//	    "trace_id": "6f1c..."
//	}
//
// A company whose statements only partly parse is not an error: the response
// is 200 with status "degraded" and the failed sections listed.
package http
