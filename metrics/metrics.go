// Package METRICS provides Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cotejo"

func listOfMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		HttpRequestCounter,
		HttpRequestsGauge,
		HttpRequestDuration,
		CredentialResolutions,
		SecretFetches,
		ProbeDuration,
		Queries,
		AmbiguousRows,
		OpenConnections,
		ApiRequests,
	}
}

func createLoadedRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics := listOfMetrics()
	for _, m := range metrics {
		reg.MustRegister(m)
	}
	return reg
}

var registry = createLoadedRegistry()

func CreateHandler() http.Handler {
	options := promhttp.HandlerOpts{}
	metricsHandler := promhttp.HandlerFor(registry, options)
	return metricsHandler
}

// requestCounter labels by route pattern, never by raw path.
func requestCounter() *prometheus.CounterVec {
	options := prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fixture_server",
		Name:      "requests_total",
		Help:      "Requests served by the fixture server by status, route and method.",
	}
	return prometheus.NewCounterVec(options, []string{"status", "route", "method"})
}

var HttpRequestCounter = requestCounter()

func requestDuration() *prometheus.HistogramVec {
	options := prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fixture_server",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving fixture server requests.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
	return prometheus.NewHistogramVec(options, []string{"route"})
}

var HttpRequestDuration = requestDuration()

func connectionsGauge() prometheus.Gauge {
	options := prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "fixture_server",
		Name:      "active_requests",
		Help:      "Requests the fixture server is serving right now.",
	}
	return prometheus.NewGauge(options)
}

var HttpRequestsGauge = connectionsGauge()

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
	return prometheus.NewCounterVec(opts, labels)
}

// CredentialResolutions counts Resolve outcomes per environment.
var CredentialResolutions = counterVec("credentials", "resolutions_total",
	"Credential resolutions by environment and outcome.", "environment", "outcome")

// SecretFetches counts secret store reads per backend.
var SecretFetches = counterVec("secrets", "fetches_total",
	"Secret store reads by backend and outcome.", "backend", "outcome")

// Queries counts gateway queries.
var Queries = counterVec("gateway", "queries_total",
	"Gateway queries by name and outcome.", "query", "outcome")

// AmbiguousRows counts single-row lookups that found more than one row.
var AmbiguousRows = counterVec("gateway", "ambiguous_rows_total",
	"Single-row lookups that returned more than one row.", "query")

// ApiRequests counts requests sent to the API under test.
var ApiRequests = counterVec("api", "requests_total",
	"Requests sent to the API under test by status.", "status", "method")

func probeHistogram() *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rdbms",
		Name:      "probe_duration_seconds",
		Help:      "Duration of connectivity probes.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}
	return prometheus.NewHistogramVec(opts, []string{"outcome"})
}

var ProbeDuration = probeHistogram()

func openConnectionsGauge() prometheus.Gauge {
	opts := prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rdbms",
		Name:      "open_connections",
		Help:      "Session connections currently held.",
	}
	return prometheus.NewGauge(opts)
}

var OpenConnections = openConnectionsGauge()

// Outcome labels an error as ok or failed.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
