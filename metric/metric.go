// Package metric provides Prometheus instrumentation for the adapter
// service. All methods are nil-receiver safe so instrumentation stays
// optional in tests and library use.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every adapter-level metric.
type Metrics struct {
	ImportsSucceeded prometheus.Counter
	ImportsFailed    *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
}

// New creates all adapter metrics, unregistered.
func New() *Metrics {
	return &Metrics{
		ImportsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ods",
			Subsystem: "adapter",
			Name:      "imports_succeeded_total",
			Help:      "Total number of successful data imports",
		}),
		ImportsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ods",
			Subsystem: "adapter",
			Name:      "imports_failed_total",
			Help:      "Total number of failed data imports",
		}, []string{"stage"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ods",
			Subsystem: "adapter",
			Name:      "events_published_total",
			Help:      "Total number of events handed to the broker",
		}, []string{"subject"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ods",
			Subsystem: "adapter",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped after the retry budget was exhausted",
		}, []string{"subject"}),
	}
}

// Register adds all metrics to the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ImportsSucceeded,
		m.ImportsFailed,
		m.EventsPublished,
		m.EventsDropped,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ImportSucceeded counts one successful import.
func (m *Metrics) ImportSucceeded() {
	if m == nil {
		return
	}
	m.ImportsSucceeded.Inc()
}

// ImportFailed counts one failed import by pipeline stage.
func (m *Metrics) ImportFailed(stage string) {
	if m == nil {
		return
	}
	m.ImportsFailed.WithLabelValues(stage).Inc()
}

// EventPublished counts one accepted broker publish.
func (m *Metrics) EventPublished(subject string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(subject).Inc()
}

// EventDropped counts one event dropped after retry exhaustion.
func (m *Metrics) EventDropped(subject string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(subject).Inc()
}

// Handler serves a registry over HTTP for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
