// Package metrics wires HTTP request metrics and the /metrics endpoint.
// Domain metrics live in internal/metrics on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faredesk"

// NewRegistry creates the registry for per-server metrics. Go runtime and
// process collectors already live on the default registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler serves reg merged with the default registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, reg}, promhttp.HandlerOpts{})
}
