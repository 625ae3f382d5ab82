// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsconvert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dsconvert_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dsconvert_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Conversion pipeline metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsconvert_conversions_total",
			Help: "Total number of conversion requests by result",
		},
		[]string{"result"}, // "success", "resolve_error", "download_error", "transcode_error", "storage_error"
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dsconvert_conversions_in_progress",
			Help: "Number of conversions currently running",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dsconvert_stage_duration_seconds",
			Help:    "Duration of each conversion stage in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"}, // "scrape", "download", "transcode"
	)

	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsconvert_scrapes_total",
			Help: "Total number of page scrapes by outcome",
		},
		[]string{"outcome"},
	)

	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsconvert_download_bytes_total",
			Help: "Total bytes downloaded from source URLs",
		},
	)
)

// Store metrics
var (
	StoredVideosDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dsconvert_stored_videos_deleted_total",
			Help: "Total number of stored videos deleted",
		},
	)

	SweptFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dsconvert_swept_files_total",
			Help: "Total number of files removed by the background sweeper",
		},
		[]string{"kind"}, // "stale", "expired"
	)
)

// Scrape outcomes.
const (
	ScrapeFound       = "found"
	ScrapeFetchError  = "fetch_error"
	ScrapeBadStatus   = "bad_status"
	ScrapeNoContainer = "no_container"
	ScrapeNoLink      = "no_link"
	ScrapeRejected    = "rejected"
)

// Sweep kinds.
const (
	SweepStale   = "stale"
	SweepExpired = "expired"
)

// Conversion results.
const (
	ResultSuccess        = "success"
	ResultResolveError   = "resolve_error"
	ResultDownloadError  = "download_error"
	ResultTranscodeError = "transcode_error"
	ResultStorageError   = "storage_error"
)

// Initialize pre-populates label combinations so every series is exported
// from the first scrape.
func Initialize() {
	for _, o := range []string{ScrapeFound, ScrapeFetchError, ScrapeBadStatus, ScrapeNoContainer, ScrapeNoLink, ScrapeRejected} {
		ScrapesTotal.WithLabelValues(o)
	}
	for _, r := range []string{ResultSuccess, ResultResolveError, ResultDownloadError, ResultTranscodeError, ResultStorageError} {
		ConversionsTotal.WithLabelValues(r)
	}
	for _, s := range []string{"scrape", "download", "transcode"} {
		StageDuration.WithLabelValues(s)
	}
	for _, k := range []string{SweepStale, SweepExpired} {
		SweptFilesTotal.WithLabelValues(k)
	}
}
