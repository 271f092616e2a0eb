package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	satarkRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satark_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	satarkRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satark_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	satarkReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satark_reports_appended_total",
		Help: "Total incident reports appended to the ledger.",
	})

	satarkVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satark_chain_verifications_total",
		Help: "Total full-chain verifications by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		satarkRequestsTotal.WithLabelValues(method, path, status).Inc()
		satarkRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordReportAppended records one successful ledger append.
func RecordReportAppended() {
	satarkReportsTotal.Inc()
}

// RecordChainVerification records a full-chain verification outcome.
func RecordChainVerification(valid bool) {
	if valid {
		satarkVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		satarkVerificationsTotal.WithLabelValues("corrupted").Inc()
	}
}
