package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the immutable process configuration, loaded once at startup.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Weather WeatherConfig `mapstructure:"weather"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// WeatherConfig holds the upstream provider settings.
type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ZipkinURL   string `mapstructure:"zipkin_url"`
	ServiceName string `mapstructure:"service_name"`
}

var ErrMissingAPIKey = errors.New("weather API key is not set (WEATHER_API_KEY or API_KEY)")

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Weather.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	u, err := url.Parse(c.Weather.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("weather.base_url must be an absolute URL, got %q", c.Weather.BaseURL)
	}
	if c.Tracing.Enabled && c.Tracing.ZipkinURL == "" {
		return fmt.Errorf("tracing.zipkin_url is required when tracing is enabled")
	}
	return nil
}
