package prometheus

import (
	"time"

	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// lineMetrics is the Prometheus implementation of metrics.LineMetrics.
type lineMetrics struct {
	commandsTotal          *prometheus.CounterVec
	commandDuration        *prometheus.HistogramVec
	commandsInFlight       *prometheus.GaugeVec
	bytesTransferred       *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	connectionsRejected    prometheus.Counter
}

// NewLineMetrics creates a new Prometheus-backed LineMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewLineMetrics() metrics.LineMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopLineMetrics()
	}

	reg := metrics.GetRegistry()

	return &lineMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_commands_total",
				Help:      "Total number of commands by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "line_command_duration_milliseconds",
				Help:      "Duration of commands in milliseconds",
				Buckets: []float64{
					0.1,  // 100µs
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"verb"},
		),
		commandsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "line_commands_in_flight",
				Help:      "Current number of commands being processed",
			},
			[]string{"verb"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_bytes_transferred_total",
				Help:      "Total bytes received and sent on client connections",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "line_active_connections",
				Help:      "Current number of active client connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_connections_accepted_total",
				Help:      "Total number of client connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_connections_closed_total",
				Help:      "Total number of client connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_connections_force_closed_total",
				Help:      "Total number of client connections force-closed during shutdown timeout",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "line_connections_rejected_total",
				Help:      "Total number of client connections rejected at the connection limit",
			},
		),
	}
}

func (m *lineMetrics) RecordCommand(verb string, outcome string, duration time.Duration) {
	m.commandsTotal.WithLabelValues(verb, outcome).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *lineMetrics) RecordCommandStart(verb string) {
	m.commandsInFlight.WithLabelValues(verb).Inc()
}

func (m *lineMetrics) RecordCommandEnd(verb string) {
	m.commandsInFlight.WithLabelValues(verb).Dec()
}

func (m *lineMetrics) RecordBytesTransferred(direction string, bytes uint64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *lineMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *lineMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *lineMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *lineMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *lineMetrics) RecordConnectionRejected() {
	m.connectionsRejected.Inc()
}
