package config

import (
	"testing"

	"github.com/marmos91/dittorpc/pkg/metrics"
)

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.RPCMetrics == nil {
		t.Fatal("Expected a no-op collector when disabled")
	}
	// Must be safe to call
	result.RPCMetrics.RecordConnectionClosed(metrics.OutcomeCompleted)
}

func TestInitializeMetrics_Enabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = 19090

	result := InitializeMetrics(cfg)

	if result.Server == nil {
		t.Fatal("Expected metrics server when enabled")
	}
	if result.Server.Port() != 19090 {
		t.Errorf("Expected port 19090, got %d", result.Server.Port())
	}
	if !metrics.IsEnabled() {
		t.Error("Expected global registry to be initialized")
	}
	result.RPCMetrics.RecordConnectionAccepted()

	// A second initialization in the same process reuses the collectors
	again := InitializeMetrics(cfg)
	if again.RPCMetrics != result.RPCMetrics {
		t.Error("Expected the same collector on re-initialization")
	}
}
