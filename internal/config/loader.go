package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPort        = "8080"
	DefaultBaseURL     = "https://api.openweathermap.org"
	DefaultZipkinURL   = "http://zipkin:9411/api/v2/spans"
	DefaultServiceName = "weather-tracker"
)

// Load reads configuration from an optional .env file, an optional
// config.yaml and the process environment, in increasing precedence.
func Load() (*Config, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Keys whose environment names do not follow the section_key pattern.
	bindings := map[string][]string{
		"server.port":        {"PORT", "SERVER_PORT"},
		"weather.api_key":    {"WEATHER_API_KEY", "API_KEY"},
		"tracing.enabled":    {"TRACING_ENABLED"},
		"tracing.zipkin_url": {"TRACING_ZIPKIN_URL", "ZIPKIN_URL"},
		"logging.level":      {"LOGGING_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("weather.base_url", DefaultBaseURL)
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.zipkin_url", DefaultZipkinURL)
	v.SetDefault("tracing.service_name", DefaultServiceName)
}
