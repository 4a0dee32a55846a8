package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the ingestion pipeline.
type Metrics struct {
	Registry        *prometheus.Registry
	FragmentsTotal  *prometheus.CounterVec
	UpsertsTotal    *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RunsTotal       prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fragments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fragments_extracted_total",
			Help: "Raw listing fragments extracted from marketplace pages.",
		},
		[]string{"source"},
	)
	upserts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_listings_upserted_total",
			Help: "Canonical listings written to storage.",
		},
		[]string{"source"},
	)
	rejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fragments_rejected_total",
			Help: "Fragments discarded during normalization, by reason.",
		},
		[]string{"reason"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_scrape_errors_total",
			Help: "Adapter and persistence errors recorded during runs.",
		},
		[]string{"source"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_run_duration_seconds",
			Help:    "End-to-end duration of scrape runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	runs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_runs_total",
			Help: "Scrape runs completed, cancelled runs included.",
		},
	)

	registry.MustRegister(fragments, upserts, rejections, errorsTotal, runDuration, runs)

	return &Metrics{
		Registry:        registry,
		FragmentsTotal:  fragments,
		UpsertsTotal:    upserts,
		RejectionsTotal: rejections,
		ErrorsTotal:     errorsTotal,
		RunDuration:     runDuration,
		RunsTotal:       runs,
	}
}

// AddFragments records n extracted fragments for a source.
func (m *Metrics) AddFragments(source string, n int) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(source).Add(float64(n))
}

// IncUpsert increments the upserted-listings counter for a source.
func (m *Metrics) IncUpsert(source string) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues(source).Inc()
}

// IncRejection increments the rejection counter for a reason label.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// IncError increments the error counter for a source.
func (m *Metrics) IncError(source string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source).Inc()
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.Inc()
	m.RunDuration.Observe(d.Seconds())
}
