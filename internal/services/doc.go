// Package services holds the business layer between the transports (HTTP
// handlers, the ingest CLI) and the pipeline, store, fetcher and exporter.
//
// IngestService runs one company at a time through
//
//	fetch → parse → process → persist → export
//
// Every stage gets its own span and duration observation. A company whose
// statement sections partly fail still yields events and reports status
// "degraded"; a company whose workbook is unreadable or whose ratio inputs are
// missing reports "failed". RunBatch records each company's outcome and keeps
// going, so one bad export never aborts the run.
//
// Downloads are paced through a token bucket so that a batch never hits the
// upstream site faster than the configured fetch delay.
//
// HealthService backs the liveness, readiness and version endpoints.
package services
