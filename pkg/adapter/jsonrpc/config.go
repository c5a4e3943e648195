package jsonrpc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the parameters of the JSON-RPC HTTP listener.
//
// Zero values are replaced by defaults (see ApplyDefaults), so a Config with
// only Bind and Port set is usable.
//
// Default values:
//   - Bind: "127.0.0.1"
//   - Port: 3030
//   - MaxConnections: 0 (unlimited)
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - MaxRequestSize: 5MiB
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
type Config struct {
	// Enabled controls whether the JSON-RPC adapter is started by the server
	// binary. Start ignores it.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Bind is the interface address to listen on. Empty means all interfaces.
	Bind string `mapstructure:"bind" validate:"omitempty,ip|hostname_rfc1123" yaml:"bind"`

	// Port is the TCP port to listen on. 0 asks the OS for a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// MaxConnections limits the number of concurrent connections.
	// When reached, Accept is paused until a connection closes.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// ReadTimeout bounds reading the request head and body. Expiry abandons
	// the connection.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0" yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Expiry abandons the
	// connection.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0" yaml:"write_timeout"`

	// MaxRequestSize caps the request body in bytes. Larger bodies abandon the
	// connection without dispatching.
	MaxRequestSize int64 `mapstructure:"max_request_size" validate:"min=0" yaml:"max_request_size"`

	// ShutdownTimeout is how long Close waits for active connections before
	// force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0" yaml:"shutdown_timeout"`

	// MetricsLogInterval is the period of the connection count log line.
	// 0 uses the default; a negative value disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval"`

	// RateLimit throttles accepted connections.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket applied to Accept.
type RateLimitConfig struct {
	// ConnectionsPerSecond is the sustained accept rate. 0 disables throttling.
	ConnectionsPerSecond uint `mapstructure:"connections_per_second" yaml:"connections_per_second"`

	// Burst is the bucket size. 0 means ConnectionsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

const (
	DefaultBind           = "127.0.0.1"
	DefaultPort           = 3030
	DefaultMaxRequestSize = 5 << 20
)

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	cfg := Config{Enabled: true, Bind: DefaultBind, Port: DefaultPort}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero values with defaults. Bind and Port are left
// alone: an empty bind means all interfaces and port 0 means OS assigned.
func (c *Config) ApplyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = DefaultMaxRequestSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
	if c.RateLimit.ConnectionsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.ConnectionsPerSecond
	}
}

// validate checks the struct tags of Config.
var validate = validator.New()

// Validate checks the configuration after defaults have been applied.
//
// Struct tags cover ranges and the bind address (an IP or an RFC 1123 host
// name, empty for all interfaces); ShutdownTimeout must be positive.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			e := fieldErrs[0]
			return fmt.Errorf("invalid %s %v: failed on '%s' tag", e.Field(), e.Value(), e.Tag())
		}
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// Address returns the host:port the listener binds.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// SetAddress splits a host:port string into Bind and Port. Named ports
// ("http") are resolved.
func (c *Config) SetAddress(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	c.Bind = host
	c.Port = port
	return nil
}
