// Package obs holds the service's Prometheus collectors.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// AccessDecisions counts guard outcomes by level (view, administer,
	// owner) and result (allowed, denied, not_found, error).
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_access_decisions_total",
			Help: "Board guard outcomes.",
		},
		[]string{"level", "result"},
	)

	AccessTouchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "board_access_touch_failures_total",
		Help: "Failed last_accessed_at writes.",
	})

	// TokenRefreshes counts /v1/auth/refresh results (ok, rejected, error).
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Refresh token exchanges.",
		},
		[]string{"result"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"backend"},
	)

	initOnce sync.Once
)

// Init registers every collector in the default registry.  Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			AccessDecisions, AccessTouchFailures, TokenRefreshes, RateLimited,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests.  Paths are the
// registered route templates so board ids do not explode cardinality.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			return nil
		}
	}
}
