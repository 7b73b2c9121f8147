// Package metrics defines the observability interfaces of sandfs components
// and owns the Prometheus registry they report to.
//
// All metrics are optional - if the registry is not initialized, components
// use no-op implementations. Prometheus-backed implementations live in the
// metrics/prometheus subpackage.
//
// Usage:
//
//	// Initialize global registry (typically from the start command)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	lineMetrics := prometheus.NewLineMetrics()
//	userMetrics := prometheus.NewUserStoreMetrics()
//
//	// Or use nil for no-op behavior
//	adapter := line.New(config, nil) // No metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every sandfs metric name.
const Namespace = "sandfs"

var (
	// registry is the global Prometheus registry for all sandfs metrics
	// Protected by registryOnce for write-once, read-many pattern
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() will return nil and all metrics constructors
// will return no-op implementations.
//
// The registry starts with the Go runtime and process collectors so a single
// scrape covers both the server's own series and its resource usage.
//
// Thread safety:
// sync.Once provides the necessary memory barriers to ensure the registry
// write is visible to all subsequent reads.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
//
// Thread safety:
// Safe to call concurrently. The sync.Once in InitRegistry() provides
// a happens-before relationship ensuring the registry value is visible.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
