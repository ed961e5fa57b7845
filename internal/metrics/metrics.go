// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for proxy latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	ErrorResponses   *prometheus.CounterVec

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamFailures  *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silly_cors_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "kind"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silly_cors_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "kind"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "silly_cors_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		ErrorResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silly_cors_error_responses_total",
			Help: "Error responses rendered by the proxy, by status code.",
		}, []string{"status_code"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silly_cors_upstream_request_duration_seconds",
			Help:    "Destination call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silly_cors_upstream_responses_total",
			Help: "Total destination responses by method and status code.",
		}, []string{"method", "status_code"}),

		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "silly_cors_upstream_failures_total",
			Help: "Destination calls that failed at the transport level, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.ErrorResponses,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamFailures,
	)

	return m
}

// Transport failure reasons used as the "reason" label of UpstreamFailures.
const (
	FailureCanceled = "canceled"
	FailureTimeout  = "timeout"
	FailureDNS      = "dns"
	FailureTLS      = "tls"
	FailureConnect  = "connect"
	FailureOther    = "other"
)

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// RequestKind returns the "kind" label: preflight for OPTIONS, proxy otherwise.
// Paths are destination-controlled and never used as labels.
func RequestKind(method string) string {
	if method == http.MethodOptions {
		return "preflight"
	}
	return "proxy"
}
