package metrics

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// StreamRoute is the long-lived notification WebSocket. Its lifetime is a
// connection, not a request, so it is counted but never timed.
const StreamRoute = "/api/notifications/stream"

// unmatchedRoute labels requests no route matched, so probing arbitrary
// paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// HTTPMetrics tracks console API traffic on the server's registry.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	ThrottledTotal  *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of console API requests in seconds, by route.",
			// session refresh waits on the authority, task runs only register
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"method", "route"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total console API requests by route and status class.",
		}, []string{"method", "route", "status_class"}),
		ThrottledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "throttled_requests_total",
			Help:      "Requests rejected by the API rate limiter, by route.",
		}, []string{"route"}),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Console API requests currently being served, excluding open streams.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.ThrottledTotal, m.InFlightGauge)
	return m
}

// Middleware records API traffic. Operational endpoints (/metrics, /health/*,
// /version) are skipped.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeLabel(c.Path())
			if skipped(route) {
				return next(c)
			}
			method := c.Request().Method

			if route == StreamRoute {
				err := next(c)
				m.RequestsTotal.WithLabelValues(method, route, statusClass(responseStatus(c, err))).Inc()
				return err
			}

			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			timer := prometheus.NewTimer(m.RequestDuration.WithLabelValues(method, route))
			err := next(c)
			timer.ObserveDuration()

			status := responseStatus(c, err)
			m.RequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
			if status == http.StatusTooManyRequests {
				m.ThrottledTotal.WithLabelValues(route).Inc()
			}
			return err
		}
	}
}

// responseStatus is the status the client will see. Echo errors that reach
// this point are written later by the framework's error handler.
func responseStatus(c echo.Context, err error) int {
	var httpErr *echo.HTTPError
	if !c.Response().Committed && errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return c.Response().Status
}

func routeLabel(path string) string {
	if path == "" || path == "/*" {
		return unmatchedRoute
	}
	return path
}

func skipped(route string) bool {
	return route == "/metrics" || route == "/version" || strings.HasPrefix(route, "/health/")
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
