package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

// FileEnv names the environment variable that points at a config file.
const FileEnv = "MCP_TERMINAL_CONFIG"

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all application configuration.
type Config struct {
	Transport string          `envconfig:"TRANSPORT" toml:"transport" yaml:"transport"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig holds HTTP transport configuration.
type ServerConfig struct {
	Host           string `envconfig:"HOST" toml:"host" yaml:"host"`
	Port           int    `envconfig:"PORT" toml:"port" yaml:"port"`
	MaxConnections int    `envconfig:"MAX_CONNECTIONS" toml:"max_connections" yaml:"max_connections"`
	// CORSOrigins is comma-separated in the environment. Empty admits
	// loopback origins only; "*" admits any origin.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" toml:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
	Output      string `envconfig:"LOG_OUTPUT" toml:"output" yaml:"output"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
}

// Load builds the configuration: defaults, then the file at path (or at
// $MCP_TERMINAL_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Transport: TransportStdio,
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8765,
			MaxConnections: 256,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      "stderr",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	// stdout carries MCP frames.
	if c.Transport == TransportStdio && c.Logging.Output == "stdout" {
		return fmt.Errorf("log output cannot be stdout with the stdio transport")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit needs positive requests per second and burst")
	}
	return nil
}
