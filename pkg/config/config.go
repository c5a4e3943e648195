package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marmos91/dittorpc/pkg/adapter/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/cors"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "DITTORPC"

// Config represents the complete DittoRPC configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTORPC_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// CORS selects the Access-Control-Allow-Origin policy of the transport
	CORS CORSConfig `mapstructure:"cors" yaml:"cors"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures metrics collection and exposure.
type MetricsConfig struct {
	// Enabled turns on collection and the /metrics HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port of the metrics HTTP server
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// CORSConfig is the configuration form of a cors.Policy.
type CORSConfig struct {
	// Mode is one of none, any, null, origin
	Mode string `mapstructure:"mode" validate:"required,oneof=none any null origin" yaml:"mode"`

	// Origin is the single allowed origin, used when Mode is "origin"
	Origin string `mapstructure:"origin" validate:"required_if=Mode origin" yaml:"origin"`
}

// Policy converts the configuration into a cors.Policy.
func (c CORSConfig) Policy() (cors.Policy, error) {
	return cors.Parse(c.Mode, c.Origin)
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// JSONRPC contains the JSON-RPC HTTP listener configuration.
	// Uses the jsonrpc.Config type directly to avoid duplication.
	JSONRPC jsonrpc.Config `mapstructure:"jsonrpc" yaml:"jsonrpc"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"log-output":       "logging.output",
	"bind":             "adapters.jsonrpc.bind",
	"port":             "adapters.jsonrpc.port",
	"max-connections":  "adapters.jsonrpc.max_connections",
	"max-request-size": "adapters.jsonrpc.max_request_size",
	"cors":             "cors.mode",
	"cors-origin":      "cors.origin",
	"metrics":          "server.metrics.enabled",
	"metrics-port":     "server.metrics.port",
}

// RegisterFlags adds the flags understood by LoadWithFlags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("log-output", "", "log output (stdout, stderr or a file path)")
	fs.String("bind", "", "interface address of the JSON-RPC listener")
	fs.Int("port", 0, "TCP port of the JSON-RPC listener")
	fs.Int("max-connections", 0, "maximum concurrent connections (0 = unlimited)")
	fs.Int64("max-request-size", 0, "maximum request body size in bytes")
	fs.String("cors", "", "CORS policy (none, any, null, origin)")
	fs.String("cors-origin", "", "allowed origin when --cors=origin")
	fs.Bool("metrics", false, "enable the Prometheus metrics endpoint")
	fs.Int("metrics-port", 0, "port of the metrics endpoint")
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with command line overrides. Only flags that were
// explicitly set take precedence over the environment and the file.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath, flags); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// setupViper configures environment variables, defaults, flags and the config
// file location.
func setupViper(v *viper.Viper, configPath string, flags *pflag.FlagSet) error {
	// Example: DITTORPC_ADAPTERS_JSONRPC_PORT=8080
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults make every key known to viper, which is what lets
	// AutomaticEnv surface environment overrides in AllSettings.
	defaults, err := flatten(GetDefaultConfig())
	if err != nil {
		return err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittorpc/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// decode turns viper's settings map into a Config. Durations may be given
// as strings ("30s") and numbers may arrive as strings from the environment.
func decode(settings map[string]any) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// toMap converts a Config to nested maps keyed by mapstructure tags.
func toMap(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// flatten returns the configuration as dotted keys ("logging.level").
func flatten(cfg *Config) (map[string]any, error) {
	nested, err := toMap(cfg)
	if err != nil {
		return nil, err
	}

	flat := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			flat[key] = v
		}
	}
	walk("", nested)
	return flat, nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittorpc")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittorpc")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
