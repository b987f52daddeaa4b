// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendtrack_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendtrack_stats_aggregation_seconds",
		Help:    "Time spent aggregating one statistics request, fetch excluded.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	})

	SkippedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_stats_skipped_records_total",
		Help: "Malformed attendance records excluded from aggregation.",
	})

	StaleCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_stats_stale_results_total",
		Help: "Statistics results discarded because a newer request superseded them.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	QueueProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_queue_messages_total",
		Help: "Queue messages handled by the worker, by type and outcome.",
	}, []string{"type", "outcome"})
)

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
