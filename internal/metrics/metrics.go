package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scan metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirefs_scans_total",
			Help: "Total number of article scans",
		},
		[]string{"source", "status"},
	)

	StatementsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirefs_statements_extracted_total",
			Help: "Total number of statements extracted from articles",
		},
	)

	CitationsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirefs_citations_extracted_total",
			Help: "Total number of citation markers attached to statements",
		},
	)

	ReferencesResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirefs_references_resolved_total",
			Help: "Total number of distinct citation ids resolved to reference text",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikirefs_scan_duration_seconds",
			Help:    "Time to scan one article and build its citation map",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Fetch metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirefs_fetches_total",
			Help: "Total number of parsed-page fetches from the wiki API",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikirefs_fetch_duration_seconds",
			Help:    "Wiki API parse request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirefs_page_cache_lookups_total",
			Help: "Page cache lookups by result",
		},
		[]string{"result"},
	)

	// Job metrics
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikirefs_jobs_submitted_total",
			Help: "Total number of batch jobs accepted",
		},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikirefs_jobs_finished_total",
			Help: "Total number of batch jobs finished by final status",
		},
		[]string{"status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wikirefs_job_queue_depth",
			Help: "Jobs waiting for a worker",
		},
	)
)

// ObserveReport records the counts from one successful scan.
func ObserveReport(statements, citations, references int) {
	StatementsExtracted.Add(float64(statements))
	CitationsExtracted.Add(float64(citations))
	ReferencesResolved.Add(float64(references))
}
