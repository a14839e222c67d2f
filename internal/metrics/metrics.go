// Package metrics exposes gateway counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "astrogate"

// Registry holds all gateway metrics on its own prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Script dispatch
	ScriptsSent    *prometheus.CounterVec
	ScriptFailures *prometheus.CounterVec
	ScriptBytes    prometheus.Histogram

	// Telemetry
	Samples          prometheus.Counter
	TelemetryRejects *prometheus.CounterVec
	Uplinks          *prometheus.CounterVec

	// Gateway status
	SentCount prometheus.Gauge
	Resets    prometheus.Counter

	// Hub
	WSClients   prometheus.Gauge
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// New creates a Registry with process and Go collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,

		ScriptsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scripts_sent_total",
			Help:      "Script commands published to the Pi",
		}, []string{"kind"}),
		ScriptFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_failures_total",
			Help:      "Script requests that failed before or during publish",
		}, []string{"reason"}),
		ScriptBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "script_text_bytes",
			Help:      "Escaped script text length of inline commands",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 8),
		}),

		Samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_samples_total",
			Help:      "Telemetry samples decoded and published",
		}),
		TelemetryRejects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_rejects_total",
			Help:      "Telemetry messages rejected by the decoder",
		}, []string{"reason"}),
		Uplinks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lorawan_uplinks_total",
			Help:      "LoRaWAN uplinks received, by result",
		}, []string{"result"}),

		SentCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sent_script_count",
			Help:      "Scripts sent since the last reset",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Gateway status resets",
		}),

		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Hub API requests",
		}, []string{"path", "code"}),
		APILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_seconds",
			Help:      "Hub API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// Handler serves this registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveRequest records one hub API request.
func (r *Registry) ObserveRequest(path, code string, d time.Duration) {
	r.APIRequests.WithLabelValues(path, code).Inc()
	r.APILatency.WithLabelValues(path).Observe(d.Seconds())
}
