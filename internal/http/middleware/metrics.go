package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no route, so scanners probing
// random URLs cannot grow the series count.
const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by method and route.",
			// The chat route waits on the language model; the tail matters.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9), // 256B..16MiB, file downloads included
		},
		[]string{"method", "route"},
	)

	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "Declared HTTP request body size of uploads and forms.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 9),
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, httpReqSize)
}

// Metrics instruments requests with Prometheus. Paths starting with one of
// skip (the websocket upgrade, the scrape endpoint) are not recorded: a
// live chat connection would otherwise count as one request lasting hours.
func Metrics(skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
		if c.Request.ContentLength > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(c.Request.ContentLength))
		}
	}
}
