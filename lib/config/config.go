// Package config loads upbridge settings from defaults, an optional config file, and
// UPBRIDGE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Transport kinds.
const (
	TransportStdio     = "stdio"
	TransportProcess   = "process"
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
)

// Config holds application configuration.
type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Log       LogConfig       `mapstructure:"log"`
}

// TransportConfig selects and configures the host channel.
type TransportConfig struct {
	Kind      string          `mapstructure:"kind"`
	Codec     string          `mapstructure:"codec"`
	Process   ProcessConfig   `mapstructure:"process"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// ProcessConfig names the host executable to spawn.
type ProcessConfig struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
}

// WebSocketConfig holds the host relay address.
type WebSocketConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds the broker settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Inbound  string `mapstructure:"inbound"`
	Outbound string `mapstructure:"outbound"`
}

// BridgeConfig holds handshake settings.
type BridgeConfig struct {
	InterestLimit       int  `mapstructure:"interest_limit"`
	RequestPrefsOnStart bool `mapstructure:"request_prefs_on_start"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file and env. Env var overrides use prefix UPBRIDGE_.
// A missing config file is not an error.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("UPBRIDGE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "upbridge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("UPBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.kind", TransportStdio)
	v.SetDefault("transport.codec", "json")
	v.SetDefault("transport.process.path", "")
	v.SetDefault("transport.process.args", []string{})
	v.SetDefault("transport.websocket.url", "ws://127.0.0.1:27895/upbridge")
	v.SetDefault("transport.redis.addr", "localhost:6379")
	v.SetDefault("transport.redis.password", "")
	v.SetDefault("transport.redis.db", 0)
	v.SetDefault("transport.redis.inbound", "upbridge:inbound")
	v.SetDefault("transport.redis.outbound", "upbridge:outbound")
	v.SetDefault("bridge.interest_limit", 5)
	v.SetDefault("bridge.request_prefs_on_start", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch c.Transport.Kind {
	case TransportStdio, TransportWebSocket, TransportRedis:
	case TransportProcess:
		if c.Transport.Process.Path == "" {
			return fmt.Errorf("config: transport.process.path is required for the process transport")
		}
	default:
		return fmt.Errorf("config: unknown transport.kind %q", c.Transport.Kind)
	}

	switch c.Transport.Codec {
	case "json", "protobuf", "proto":
	default:
		return fmt.Errorf("config: unknown transport.codec %q", c.Transport.Codec)
	}

	if c.Bridge.InterestLimit <= 0 {
		return fmt.Errorf("config: bridge.interest_limit must be positive, got %d", c.Bridge.InterestLimit)
	}
	return nil
}
