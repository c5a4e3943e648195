package config

import (
	"github.com/marmos91/dittorpc/pkg/metrics"
	promMetrics "github.com/marmos91/dittorpc/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// RPCMetrics is the collector for the JSON-RPC adapter (never nil, uses noop if disabled)
	RPCMetrics metrics.RPCMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics for the JSON-RPC adapter
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Calling it again returns the same Prometheus-backed collectors, so the
// registry never sees a duplicate registration.
//
// Parameters:
//   - cfg: The loaded configuration; only Server.Metrics is read
//
// Returns:
//   - *MetricsResult: Metrics server (nil when disabled) and RPC metrics
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Server:     nil,
			RPCMetrics: metrics.NewNoopRPCMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:     server,
		RPCMetrics: promMetrics.NewRPCMetrics(),
	}
}
