// Package metrics holds the Prometheus instruments shared by the server, resolvers, and proxy.
// They register on the default registry and are exposed by Handler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/boxrelay/boxrelay/constant"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequests counts handled requests by method, route template, and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: constant.App,
	Name:      "http_requests_total",
	Help:      "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks request latency until the handler returns. For streams this is the transfer time.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: constant.App,
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// CacheLookups counts cache reads by cache name and result (hit, miss).
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: constant.App,
	Name:      "cache_lookups_total",
	Help:      "Cache lookups by cache and result.",
}, []string{"cache", "result"})

// StrategyOutcomes counts stream fetch attempts by strategy and outcome (ok, error).
var StrategyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: constant.App,
	Name:      "strategy_outcomes_total",
	Help:      "Stream fetch attempts by strategy and outcome.",
}, []string{"strategy", "outcome"})

// ResolveDuration tracks the network-bound part of stream resolution.
var ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: constant.App,
	Name:      "resolve_duration_seconds",
	Help:      "Stream resolution latency in seconds, cache hits excluded.",
	Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
})

// ActiveStreams is the number of proxied streams currently open.
var ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: constant.App,
	Name:      "active_streams",
	Help:      "Number of proxied streams currently open.",
})

// BytesRelayed counts bytes written to proxy clients.
var BytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: constant.App,
	Name:      "relayed_bytes_total",
	Help:      "Bytes relayed from upstream to clients.",
})

// Cache result labels.
const (
	Hit  = "hit"
	Miss = "miss"
)

// Lookup records a cache read.
func Lookup(cache string, hit bool) {
	result := Miss
	if hit {
		result = Hit
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// Observe records one handled request.
func Observe(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
