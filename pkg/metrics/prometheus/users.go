package prometheus

import (
	"time"

	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// userStoreMetrics is the Prometheus implementation of metrics.UserStoreMetrics.
type userStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	registeredUsers   prometheus.Gauge
}

// NewUserStoreMetrics creates a new Prometheus-backed UserStoreMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewUserStoreMetrics() metrics.UserStoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopUserStoreMetrics()
	}

	reg := metrics.GetRegistry()

	return &userStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "users_operations_total",
				Help:      "Total number of user store operations by operation, backend and status",
			},
			[]string{"operation", "backend", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "users_operation_duration_seconds",
				Help:      "Duration of user store operations in seconds, persistence included",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.25,  // 250ms
					1.0,   // 1s
					5.0,   // 5s
				},
			},
			[]string{"operation", "backend"},
		),
		registeredUsers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "users_registered",
				Help:      "Current number of registered users",
			},
		),
	}
}

func (m *userStoreMetrics) RecordOperation(operation string, backend string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.operationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func (m *userStoreMetrics) SetRegisteredUsers(count int) {
	m.registeredUsers.Set(float64(count))
}
