// Package metrics provides Prometheus metrics collection for the DittoRPC
// transport.
//
// Metrics are optional. Until InitRegistry is called every constructor hands
// out a no-op implementation, so the transport runs the same way with or
// without collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create the transport metrics
//	rpcMetrics := prometheus.NewRPCMetrics()
//
//	// Or use nil for no-op behavior
//	srv, err := jsonrpc.StartWithConfig(cfg, dispatcher, policy, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read many times
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Calls after the
// first one are ignored.
// The Go runtime and process collectors are registered with it.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global Prometheus registry, or nil when
// InitRegistry has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
