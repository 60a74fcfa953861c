// Package config loads and validates the application configuration from
// config.yml, with environment-variable overrides for secrets and ports.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

// UpstreamConfig holds the transit provider connection settings.
type UpstreamConfig struct {
	BaseURL            string `yaml:"base_url" validate:"required,url"`
	APIKey             string `yaml:"api_key"`
	MaxRequests        int    `yaml:"max_requests"`
	WindowSeconds      int    `yaml:"window_seconds"`
	MinSpacingMs       int    `yaml:"min_spacing_ms"`
	MaxAttempts        int    `yaml:"max_attempts"`
	BackoffBaseMs      int    `yaml:"backoff_base_ms"`
	BackoffCapMs       int    `yaml:"backoff_cap_ms"`
	RequestTimeoutSecs int    `yaml:"request_timeout_seconds"`
}

// RedisConfig holds the optional remote cache settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// PollingConfig holds the scheduler intervals.
type PollingConfig struct {
	VehiclesSeconds    int `yaml:"vehicles_seconds"`
	PredictionsSeconds int `yaml:"predictions_seconds"`
	AlertsSeconds      int `yaml:"alerts_seconds"`
	StaticHours        int `yaml:"static_hours"`
	ChunkDelayMs       int `yaml:"chunk_delay_ms"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Redis    RedisConfig    `yaml:"redis"`
	Polling  PollingConfig  `yaml:"polling"`
}

// Load reads, validates and defaults the configuration. Paths are tried in
// order; the first readable file wins.
func Load(paths ...string) (*AppConfig, error) {
	if len(paths) == 0 {
		paths = []string{"config.yml", "./config/config.yml"}
	}

	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("UPSTREAM_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if os.Getenv("REDIS_TLS_ENABLED") == "true" {
		cfg.Redis.TLS = true
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Polling.VehiclesSeconds == 0 {
		cfg.Polling.VehiclesSeconds = 15
	}
	if cfg.Polling.PredictionsSeconds == 0 {
		cfg.Polling.PredictionsSeconds = 30
	}
	if cfg.Polling.AlertsSeconds == 0 {
		cfg.Polling.AlertsSeconds = 60
	}
	if cfg.Polling.StaticHours == 0 {
		cfg.Polling.StaticHours = 6
	}
	if cfg.Polling.ChunkDelayMs == 0 {
		cfg.Polling.ChunkDelayMs = 200
	}
}
