// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. The path
// label is the registered Gin route (e.g. /api/v1/scans/:id), falling back
// to the raw path only for unmatched requests, which keeps cardinality
// bounded. Event streams are counted separately: their duration is the
// life of a browser tab and would swamp the latency histogram.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanpipe",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left out to keep the histogram small.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scanpipe",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of non-streaming HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scanpipe",
			Name:      "http_requests_inflight",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	// Uploads dominate the upper buckets.
	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scanpipe",
			Name:      "http_request_size_bytes",
			Help:      "Size of HTTP request bodies in bytes.",
			Buckets:   prometheus.ExponentialBuckets(512, 4, 10), // 512B..128MiB
		},
		[]string{"method", "path"},
	)

	httpStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scanpipe",
			Name:      "http_event_streams_open",
			Help:      "Currently open server-sent event streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpStreams)
}

// Metrics instruments every request. A request whose response is
// text/event-stream is tracked on the open-streams gauge for its lifetime
// instead of the latency histogram.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		streaming := isEventStreamRequest(c)
		if streaming {
			httpStreams.Inc()
			defer httpStreams.Dec()
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if c.Request.ContentLength > 0 {
			httpReqSize.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}
		if !streaming {
			httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		}
	}
}

func isEventStreamRequest(c *gin.Context) bool {
	return c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}
