package jsonrpc

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittorpc/internal/protocol/rpchttp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, DefaultBind, cfg.Bind)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, int64(DefaultMaxRequestSize), cfg.MaxRequestSize)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.MetricsLogInterval)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaultsBurst(t *testing.T) {
	cfg := Config{RateLimit: RateLimitConfig{ConnectionsPerSecond: 50}}
	cfg.ApplyDefaults()
	assert.Equal(t, uint(50), cfg.RateLimit.Burst)
}

func TestSetAddress(t *testing.T) {
	tests := []struct {
		addr     string
		wantBind string
		wantPort int
		wantErr  bool
	}{
		{addr: "127.0.0.1:3030", wantBind: "127.0.0.1", wantPort: 3030},
		{addr: "localhost:0", wantBind: "localhost", wantPort: 0},
		{addr: ":8080", wantBind: "", wantPort: 8080},
		{addr: "[::1]:9000", wantBind: "::1", wantPort: 9000},
		{addr: "no-port", wantErr: true},
		{addr: "127.0.0.1:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			var cfg Config
			err := cfg.SetAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBind, cfg.Bind)
			assert.Equal(t, tt.wantPort, cfg.Port)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Port = -1 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"bad bind", func(c *Config) { c.Bind = "not a host" }},
		{"bind is a lone hyphen", func(c *Config) { c.Bind = "-" }},
		{"bind with empty labels", func(c *Config) { c.Bind = ".." }},
		{"bind label starts with hyphen", func(c *Config) { c.Bind = "-bad.example.com" }},
		{"negative max connections", func(c *Config) { c.MaxConnections = -1 }},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
		{"negative request size", func(c *Config) { c.MaxRequestSize = -1 }},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsBindForms(t *testing.T) {
	for _, bind := range []string{"", "127.0.0.1", "0.0.0.0", "::1", "localhost", "rpc-1.example.com"} {
		t.Run(bind, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Bind = bind
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestWriteHead(t *testing.T) {
	res := rpchttp.NewResponse()
	res.Status = http.StatusMethodNotAllowed
	res.Header.Set("Allow", "OPTIONS, POST")

	var buf bytes.Buffer
	require.NoError(t, writeHead(&buf, res))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 405 Method Not Allowed\r\n"))
	assert.Contains(t, out, "Allow: OPTIONS, POST\r\n")
	assert.Contains(t, out, "Content-Length: 0\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"))

	// The handler's header set is left untouched.
	assert.Empty(t, res.Header.Get("Connection"))
}

type zeroReader struct{ calls int }

func (r *zeroReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls == 1 {
		return 0, nil
	}
	return copy(p, "x"), nil
}

func TestBodyDecoderTurnsEmptyReadIntoWouldBlock(t *testing.T) {
	var n int64
	dec := &bodyDecoder{r: &zeroReader{}, n: &n}
	buf := make([]byte, 8)

	_, err := dec.Read(buf)
	assert.ErrorIs(t, err, rpchttp.ErrWouldBlock)

	got, err := dec.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, int64(1), n)
}
