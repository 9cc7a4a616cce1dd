package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Company outcome labels for PipelineMetrics.CompaniesProcessed
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// PipelineMetrics are the ingest counters exposed on /metrics
type PipelineMetrics struct {
	CompaniesProcessed *prometheus.CounterVec
	EventsEmitted      prometheus.Counter
	EventsPersisted    prometheus.Counter
	SectionFailures    *prometheus.CounterVec
	PipelineDuration   *prometheus.HistogramVec
}

// NewPipelineMetrics creates the ingest metrics and registers them on reg
func NewPipelineMetrics(reg prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		CompaniesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finsheet_companies_processed_total",
			Help: "Companies run through the pipeline, by outcome.",
		}, []string{"status"}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsheet_events_emitted_total",
			Help: "Long events produced by the reshaper.",
		}),
		EventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsheet_events_persisted_total",
			Help: "Long events upserted into the store.",
		}),
		SectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finsheet_section_failures_total",
			Help: "Statement sections that could not be parsed, by section.",
		}, []string{"section"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finsheet_pipeline_duration_seconds",
			Help:    "Wall time of pipeline stages.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{
		m.CompaniesProcessed, m.EventsEmitted, m.EventsPersisted, m.SectionFailures, m.PipelineDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewUnregisteredPipelineMetrics returns metrics bound to a throwaway registry
func NewUnregisteredPipelineMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(prometheus.NewRegistry())
	return m
}
