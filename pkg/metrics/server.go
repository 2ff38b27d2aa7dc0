package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics observes the TCP server: request outcomes per verb and the
// connection lifecycle. Passing nil to the server selects the no-op
// implementation.
type ServerMetrics interface {
	// RecordRequest records one completed request with its wire verb,
	// outcome ("ok" or "error") and processing duration.
	RecordRequest(verb, status string, duration time.Duration)

	// RecordConnectionAccepted counts a newly accepted connection.
	RecordConnectionAccepted()

	// RecordConnectionClosed counts a closed connection.
	RecordConnectionClosed()

	// RecordConnectionRejected counts a connection turned away before
	// serving, labeled with the reason ("max_connections").
	RecordConnectionRejected(reason string)

	// SetActiveConnections updates the live connection gauge.
	SetActiveConnections(count int32)
}

type serverMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsRejected *prometheus.CounterVec
}

// NewServerMetrics builds a Prometheus-backed ServerMetrics, or a no-op one
// when the registry is not initialized.
func NewServerMetrics() ServerMetrics {
	if !IsEnabled() {
		return noopServerMetrics{}
	}

	reg := GetRegistry()

	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forchetta_requests_total",
				Help: "Total number of requests by verb and status",
			},
			[]string{"verb", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "forchetta_request_duration_seconds",
				Help: "Duration of request processing in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.01,
					0.025,
					0.05,
					0.1,
					0.25,
					0.5,
					1.0,
				},
			},
			[]string{"verb"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "forchetta_active_connections",
				Help: "Current number of open client connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "forchetta_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "forchetta_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "forchetta_connections_rejected_total",
				Help: "Total number of connections rejected before serving",
			},
			[]string{"reason"},
		),
	}
}

func (m *serverMetrics) RecordRequest(verb, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(verb, status).Inc()
	m.requestDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

// noopServerMetrics discards all observations.
type noopServerMetrics struct{}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

func (noopServerMetrics) RecordRequest(string, string, time.Duration) {}
func (noopServerMetrics) RecordConnectionAccepted()                   {}
func (noopServerMetrics) RecordConnectionClosed()                     {}
func (noopServerMetrics) RecordConnectionRejected(string)             {}
func (noopServerMetrics) SetActiveConnections(int32)                  {}
