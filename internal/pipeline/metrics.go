package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape pipeline.
type Metrics struct {
	Registry      *prometheus.Registry
	RunsTotal     *prometheus.CounterVec
	StageItems    *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	FetchResults  *prometheus.CounterVec
	ExtractResult *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_scrape_runs_total",
			Help: "Scrape runs by website and outcome.",
		},
		[]string{"website", "outcome"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_stage_items_total",
			Help: "Items produced by each pipeline stage.",
		},
		[]string{"stage"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealscout_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)
	fetchResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_fetch_results_total",
			Help: "Page fetches by result (rendered, fallback, dropped).",
		},
		[]string{"result"},
	)
	extractResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_extract_results_total",
			Help: "Page extractions by outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_errors_total",
			Help: "Pipeline errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(runs, items, duration, fetchResults, extractResults, errorsTotal)

	return &Metrics{
		Registry:      registry,
		RunsTotal:     runs,
		StageItems:    items,
		StageDuration: duration,
		FetchResults:  fetchResults,
		ExtractResult: extractResults,
		ErrorsTotal:   errorsTotal,
	}
}

// IncRun counts a finished run.
func (m *Metrics) IncRun(website, outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(website, outcome).Inc()
}

// AddItems adds n items to the stage counter.
func (m *Metrics) AddItems(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StageItems.WithLabelValues(stage).Add(float64(n))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddFetchResult adds n fetches with the given result label.
func (m *Metrics) AddFetchResult(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchResults.WithLabelValues(result).Add(float64(n))
}

// AddExtractResult adds n extractions with the given outcome label.
func (m *Metrics) AddExtractResult(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExtractResult.WithLabelValues(outcome).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
