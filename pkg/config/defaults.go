package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittorpc/pkg/adapter/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/cors"
)

// DefaultMetricsPort is the port of the Prometheus endpoint when enabled.
const DefaultMetricsPort = 9090

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyCORSDefaults(&cfg.CORS)
	cfg.Adapters.JSONRPC.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

func applyCORSDefaults(cfg *CORSConfig) {
	if cfg.Mode == "" {
		cfg.Mode = cors.KindNone.String()
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Seeding viper so environment overrides are visible
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			JSONRPC: jsonrpc.DefaultConfig(),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
