package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("UPBRIDGE_CONFIG", "")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, c.Transport.Kind)
	assert.Equal(t, "json", c.Transport.Codec)
	assert.Equal(t, "upbridge:inbound", c.Transport.Redis.Inbound)
	assert.Equal(t, "upbridge:outbound", c.Transport.Redis.Outbound)
	assert.Equal(t, 5, c.Bridge.InterestLimit)
	assert.True(t, c.Bridge.RequestPrefsOnStart)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("UPBRIDGE_TRANSPORT_KIND", "redis")
	t.Setenv("UPBRIDGE_TRANSPORT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("UPBRIDGE_BRIDGE_INTEREST_LIMIT", "8")
	t.Setenv("UPBRIDGE_BRIDGE_REQUEST_PREFS_ON_START", "false")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportRedis, c.Transport.Kind)
	assert.Equal(t, "redis.internal:6380", c.Transport.Redis.Addr)
	assert.Equal(t, 8, c.Bridge.InterestLimit)
	assert.False(t, c.Bridge.RequestPrefsOnStart)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "upbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport:
  kind: process
  codec: protobuf
  process:
    path: /usr/local/bin/host
    args: ["--quiet"]
log:
  level: debug
`), 0o600))
	t.Setenv("UPBRIDGE_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportProcess, c.Transport.Kind)
	assert.Equal(t, "protobuf", c.Transport.Codec)
	assert.Equal(t, "/usr/local/bin/host", c.Transport.Process.Path)
	assert.Equal(t, []string{"--quiet"}, c.Transport.Process.Args)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 5, c.Bridge.InterestLimit)
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "upbridge")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("transport:\n  kind: websocket\n"), 0o600))

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, c.Transport.Kind)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("UPBRIDGE_CONFIG", filepath.Join(dir, "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Transport: TransportConfig{Kind: TransportStdio, Codec: "json"},
			Bridge:    BridgeConfig{InterestLimit: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown kind", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }, "unknown transport.kind"},
		{"process without path", func(c *Config) { c.Transport.Kind = TransportProcess }, "transport.process.path"},
		{"process with path", func(c *Config) {
			c.Transport.Kind = TransportProcess
			c.Transport.Process.Path = "/bin/host"
		}, ""},
		{"proto alias", func(c *Config) { c.Transport.Codec = "proto" }, ""},
		{"unknown codec", func(c *Config) { c.Transport.Codec = "xml" }, "unknown transport.codec"},
		{"zero interest limit", func(c *Config) { c.Bridge.InterestLimit = 0 }, "interest_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
