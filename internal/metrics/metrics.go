package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmatrade_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pharmatrade_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ReportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmatrade_report_jobs_total",
			Help: "Report jobs by final status and format",
		},
		[]string{"status", "format"},
	)

	ReportBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pharmatrade_report_build_duration_seconds",
			Help:    "Time to build and store one report",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ReportsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmatrade_reports_purged_total",
			Help: "Expired reports removed from storage",
		},
	)

	SummaryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmatrade_summary_cache_hits_total",
			Help: "Quick summary cache hits by kind",
		},
		[]string{"kind"},
	)

	SummaryCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmatrade_summary_cache_misses_total",
			Help: "Quick summary cache misses by kind",
		},
		[]string{"kind"},
	)

	ImportedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmatrade_imported_rows_total",
			Help: "Shipment rows processed by imports, by outcome",
		},
		[]string{"import_type", "outcome"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordReportJob records the final state of a report job.
func RecordReportJob(status, format string, duration time.Duration) {
	ReportJobsTotal.WithLabelValues(status, format).Inc()
	ReportBuildDuration.Observe(duration.Seconds())
}

// RecordSummaryCache records a quick summary cache lookup.
func RecordSummaryCache(kind string, hit bool) {
	if hit {
		SummaryCacheHits.WithLabelValues(kind).Inc()
		return
	}
	SummaryCacheMisses.WithLabelValues(kind).Inc()
}

// RecordImport records the outcome counts of one import job.
func RecordImport(importType string, upserted, triaged, blank int) {
	ImportedRows.WithLabelValues(importType, "upserted").Add(float64(upserted))
	ImportedRows.WithLabelValues(importType, "triaged").Add(float64(triaged))
	ImportedRows.WithLabelValues(importType, "blank").Add(float64(blank))
}

// Middleware records latency and status for every request, labelled by the
// matched route pattern rather than the raw path.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			RecordAPIRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
