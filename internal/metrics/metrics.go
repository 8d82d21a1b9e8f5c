package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Build metrics
var (
	BuildRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_build_runs_total",
			Help: "Total number of library builds by outcome",
		},
		[]string{"outcome"}, // "succeeded", "failed", "rejected"
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelfsync_build_duration_seconds",
			Help:    "Duration of library builds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	BuildRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfsync_build_running",
			Help: "Whether a build is currently running (1 = running, 0 = idle)",
		},
	)

	BuildBooks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shelfsync_build_last_books",
			Help: "Books classified by the last build",
		},
		[]string{"class"}, // "existing", "orphaned", "reread", "reused", "new", "failed"
	)
)

// Library metrics
var (
	IndexedBooks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfsync_indexed_books",
			Help: "Number of books in the live index",
		},
	)

	RescansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_rescans_total",
			Help: "Total number of single-path rescans",
		},
		[]string{"result"}, // "updated", "removed", "unresolved"
	)

	ReadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfsync_read_failures_total",
			Help: "Total number of book files whose metadata could not be read",
		},
	)

	BookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_book_events_total",
			Help: "Total number of published book events by kind",
		},
		[]string{"kind"},
	)

	BuildEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfsync_build_events_total",
			Help: "Total number of published build events by kind",
		},
		[]string{"kind"},
	)
)

// Stream metrics
var (
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelfsync_sse_clients",
			Help: "Number of connected event stream clients",
		},
	)

	SSEDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfsync_sse_dropped_events_total",
			Help: "Total number of events dropped for slow stream clients or a full queue",
		},
	)
)
