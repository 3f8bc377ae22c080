package davclient

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ProxyConfig is the proxy section of a Config.
type ProxyConfig struct {
	// Scheme is "http" (default), "https" or "socks5".
	Scheme string `yaml:"scheme" toml:"scheme"`
	Host   string `yaml:"host" toml:"host"`
	// Port 0 means the scheme's default port.
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// Config is the file form of a client's settings.
type Config struct {
	// URL is the server, principal or calendar URL to start from.
	URL      string `yaml:"url" toml:"url"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`

	// Timeout bounds each request, in time.ParseDuration syntax ("30s").
	// Empty or "0" disables it.
	Timeout string `yaml:"timeout" toml:"timeout"`

	Proxy *ProxyConfig `yaml:"proxy,omitempty" toml:"proxy,omitempty"`

	// RateLimit caps requests per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	Burst     int     `yaml:"burst" toml:"burst"`

	UserAgent string `yaml:"user_agent" toml:"user_agent"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

const defaultUserAgent = "beralt-caldav/1.0"

// DefaultConfig returns the settings used for anything a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   "30s",
		Burst:     1,
		UserAgent: defaultUserAgent,
		LogLevel:  "info",
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) config file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Options converts the config into client options logging to logger.
func (c *Config) Options(logger *slog.Logger) (Options, error) {
	opts := Options{
		Username:  c.Username,
		Password:  c.Password,
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
		UserAgent: c.UserAgent,
		Logger:    logger,
	}
	if c.Timeout != "" {
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return Options{}, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
		opts.Timeout = timeout
	}
	if c.Proxy != nil && c.Proxy.Host != "" {
		opts.Proxy = &Proxy{
			Scheme:   c.Proxy.Scheme,
			Host:     c.Proxy.Host,
			Port:     c.Proxy.Port,
			Username: c.Proxy.Username,
			Password: c.Proxy.Password,
		}
	}
	return opts, nil
}
