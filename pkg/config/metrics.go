package config

import (
	"github.com/marmos91/sandfs/pkg/metrics"
	promMetrics "github.com/marmos91/sandfs/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// LineMetrics is the collector for the line adapter (never nil, uses noop if disabled)
	LineMetrics metrics.LineMetrics

	// UserStoreMetrics is the collector for the user store (never nil, uses noop if disabled)
	UserStoreMetrics metrics.UserStoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Prometheus collectors are registered once per process; call this with
// metrics enabled at most once.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:           nil,
			LineMetrics:      metrics.NewNoopLineMetrics(),
			UserStoreMetrics: metrics.NewNoopUserStoreMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:           server,
		LineMetrics:      promMetrics.NewLineMetrics(),
		UserStoreMetrics: promMetrics.NewUserStoreMetrics(),
	}
}
