// Package metrics exposes Prometheus collectors for the quotes crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerAuthorFetchesTotal  *prometheus.CounterVec
	storageRowsTotal           *prometheus.CounterVec
	crawlerRunsTotal           *prometheus.CounterVec
	crawlerRunDurationSeconds  prometheus.Histogram
	crawlerLastSuccessSeconds  prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Page outcomes.
const (
	PageOK         = "ok"
	PageEmpty      = "empty"
	PageFetchError = "fetch_error"
)

// Author page outcomes.
const (
	AuthorOK     = "ok"
	AuthorCached = "cached"
	AuthorError  = "error"
)

// Row outcomes.
const (
	RowInserted = "inserted"
	RowExisting = "existing"
	RowFailed   = "failed"
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times; every Observe helper
// calls it first.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_pages_total",
				Help: "Listing pages requested, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerAuthorFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_author_fetches_total",
				Help: "Author detail lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		storageRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_rows_total",
				Help: "Rows written during persistence, labeled by table and outcome.",
			},
			[]string{"table", "outcome"},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_runs_total",
				Help: "Completed crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quotes_crawler_run_duration_seconds",
				Help:    "Wall time of a crawl run including persistence.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		crawlerLastSuccessSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotes_crawler_last_success_timestamp_seconds",
				Help: "Unix time of the last successful crawl run.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one listing page outcome.
func ObservePage(outcome string) {
	Init()
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveAuthorFetch counts one author detail lookup.
func ObserveAuthorFetch(outcome string) {
	Init()
	crawlerAuthorFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRows adds n rows for the table/outcome pair. Zero is ignored.
func ObserveRows(table, outcome string, n int) {
	if n <= 0 {
		return
	}
	Init()
	storageRowsTotal.WithLabelValues(table, outcome).Add(float64(n))
}

// ObserveRun records a finished crawl run.
func ObserveRun(status string, duration time.Duration, finishedAt time.Time) {
	Init()
	crawlerRunsTotal.WithLabelValues(status).Inc()
	crawlerRunDurationSeconds.Observe(duration.Seconds())
	if status == "success" {
		crawlerLastSuccessSeconds.Set(float64(finishedAt.Unix()))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
