// Package metrics exposes Prometheus collectors for every transport that
// serves classifications.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	classifyTotal    *prometheus.CounterVec
	classifyDuration *prometheus.HistogramVec
	confidence       *prometheus.HistogramVec
	rejectedTotal    *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zpam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zpam",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zpam",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	classifyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zpam",
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Total classifications by transport and category.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"source", "category"},
	)
	classifyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zpam",
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Time spent normalizing, vectorizing and predicting one message.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"source"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zpam",
			Subsystem: "classifier",
			Name:      "confidence",
			Help:      "Confidence of the predicted category.",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"category"},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zpam",
			Subsystem: "classifier",
			Name:      "rejected_requests_total",
			Help:      "Requests rejected before classification.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"source", "reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		classifyTotal,
		classifyDuration,
		confidence,
		rejectedTotal,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		classifyTotal:    classifyTotal,
		classifyDuration: classifyDuration,
		confidence:       confidence,
		rejectedTotal:    rejectedTotal,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StartRequest() {
	m.requestInFlight.Inc()
}

func (m *Metrics) FinishRequest(method, path string, status int, duration time.Duration) {
	m.requestInFlight.Dec()
	if path == "" {
		path = "unmatched"
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordClassification(source, category string, confidence float64, duration time.Duration) {
	m.classifyTotal.WithLabelValues(source, category).Inc()
	m.classifyDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.confidence.WithLabelValues(category).Observe(confidence)
}

func (m *Metrics) RecordRejected(source, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedTotal.WithLabelValues(source, reason).Inc()
}
