// Package metrics exposes server counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests and tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "minikv"

// Command outcome labels
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors of one server
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ProtocolErrors      prometheus.Counter
	Commands            *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Number of accepted client connections.",
		}),
		ConnectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_connections_total",
			Help:      "Connections refused because maxclients was reached.",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed on malformed frames.",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands served, by name and outcome.",
		}, []string{"command", "status"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command against the store.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"command"}),
	}
}

// RegisterKeys exports the number of keys, read through fn at scrape time
func (m *Metrics) RegisterKeys(fn func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "keys",
		Help:      "Number of keys in the store.",
	}, func() float64 {
		return float64(fn())
	}))
}

// ConnOpened records an accepted connection
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// ConnClosed records a closed connection
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// ConnRejected records a connection refused by maxclients
func (m *Metrics) ConnRejected() {
	if m == nil {
		return
	}
	m.ConnectionsRejected.Inc()
}

// ProtocolError records a connection dropped on a malformed frame
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

// CommandDone records one command
func (m *Metrics) CommandDone(name string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if failed {
		status = StatusError
	}
	m.Commands.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
