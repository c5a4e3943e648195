package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/marmos91/dittorpc/pkg/cors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "info"

adapters:
  jsonrpc:
    port: 4040
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.JSONRPC.Port != 4040 {
		t.Errorf("Expected port 4040 from file, got %d", cfg.Adapters.JSONRPC.Port)
	}
	if !cfg.Adapters.JSONRPC.Enabled {
		t.Error("Expected JSON-RPC adapter enabled by default")
	}
	if cfg.Adapters.JSONRPC.Bind != "127.0.0.1" {
		t.Errorf("Expected default bind 127.0.0.1, got %q", cfg.Adapters.JSONRPC.Bind)
	}
	if cfg.CORS.Mode != "none" {
		t.Errorf("Expected default cors mode 'none', got %q", cfg.CORS.Mode)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A path in a temp dir keeps the user's ~/.config/dittorpc out of the test
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.JSONRPC.Port != 3030 {
		t.Errorf("Expected default port 3030, got %d", cfg.Adapters.JSONRPC.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[cors]
mode = "origin"
origin = "https://example.com"

[adapters.jsonrpc]
port = 8545
read_timeout = "5s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Adapters.JSONRPC.Port != 8545 {
		t.Errorf("Expected port 8545, got %d", cfg.Adapters.JSONRPC.Port)
	}
	if cfg.Adapters.JSONRPC.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read timeout 5s, got %v", cfg.Adapters.JSONRPC.ReadTimeout)
	}

	policy, err := cfg.CORS.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if value, ok := policy.HeaderValue(); !ok || value != "https://example.com" {
		t.Errorf("Expected origin policy for https://example.com, got %s", policy)
	}
}

func TestLoad_InvalidCORSOrigin(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
cors:
  mode: origin
  origin: "https://*.example.com"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for wildcard origin")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Server.Metrics.Port)
	}
	if !cfg.Adapters.JSONRPC.Enabled {
		t.Error("Expected JSON-RPC adapter enabled by default")
	}
	if cfg.Adapters.JSONRPC.MaxRequestSize != 5<<20 {
		t.Errorf("Expected 5MiB request cap, got %d", cfg.Adapters.JSONRPC.MaxRequestSize)
	}

	policy, err := cfg.CORS.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if policy.Kind() != cors.KindNone {
		t.Errorf("Expected none policy by default, got %s", policy)
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in an empty config home")
	}
	if err := InitConfigToPath(GetDefaultConfigPath(), false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after init")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if dir := GetConfigDir(); dir != filepath.Join(xdg, "dittorpc") {
		t.Errorf("Expected %q, got %q", filepath.Join(xdg, "dittorpc"), dir)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTORPC_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTORPC_ADAPTERS_JSONRPC_PORT", "5049")
	t.Setenv("DITTORPC_ADAPTERS_JSONRPC_WRITE_TIMEOUT", "2s")
	t.Setenv("DITTORPC_CORS_MODE", "any")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

adapters:
  jsonrpc:
    port: 3030
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.JSONRPC.Port != 5049 {
		t.Errorf("Expected port 5049 from env var, got %d", cfg.Adapters.JSONRPC.Port)
	}
	if cfg.Adapters.JSONRPC.WriteTimeout != 2*time.Second {
		t.Errorf("Expected write timeout 2s from env var, got %v", cfg.Adapters.JSONRPC.WriteTimeout)
	}
	if cfg.CORS.Mode != "any" {
		t.Errorf("Expected cors mode 'any' from env var, got %q", cfg.CORS.Mode)
	}
}

func TestLoadWithFlags(t *testing.T) {
	t.Setenv("DITTORPC_ADAPTERS_JSONRPC_PORT", "5049")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--port=6060", "--cors=null", "--log-format=json"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := LoadWithFlags(filepath.Join(t.TempDir(), "none.yaml"), fs)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Adapters.JSONRPC.Port != 6060 {
		t.Errorf("Expected flag to win over env, got port %d", cfg.Adapters.JSONRPC.Port)
	}
	if cfg.CORS.Mode != "null" {
		t.Errorf("Expected cors mode 'null', got %q", cfg.CORS.Mode)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	// Unset flags do not clobber defaults
	if cfg.Adapters.JSONRPC.Bind != "127.0.0.1" {
		t.Errorf("Expected default bind, got %q", cfg.Adapters.JSONRPC.Bind)
	}
}
