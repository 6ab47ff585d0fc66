// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophpress_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophpress_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gophpress_http_active_requests",
			Help: "Number of HTTP requests being served",
		},
	)

	// Authorization

	// AuthzDenialsTotal counts rejected requests by kind:
	// unauthenticated, forbidden, invalid_credentials, invalid_token, master_key.
	AuthzDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_denials_total",
			Help: "Total number of authorization denials",
		},
		[]string{"kind"},
	)

	// Maintenance

	RefreshTokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophpress_refresh_tokens_purged_total",
			Help: "Total number of expired refresh tokens deleted",
		},
	)
)

// RecordAPIRequest records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDenial counts a rejected request.
func RecordDenial(kind string) {
	AuthzDenialsTotal.WithLabelValues(kind).Inc()
}

// RecordPurge counts deleted refresh tokens.
func RecordPurge(n int64) {
	if n > 0 {
		RefreshTokensPurged.Add(float64(n))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
