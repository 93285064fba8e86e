// Package config loads optz settings from the environment.
//
// Every variable carries the OPTZ prefix and is grouped by section:
//
//   - OPTZ_SERVER_HOST, OPTZ_SERVER_PORT
//   - OPTZ_PIPELINE_MAX_INPUT_BYTES, OPTZ_PIPELINE_BUDGET,
//     OPTZ_PIPELINE_WORKERS, OPTZ_PIPELINE_STRENGTH_REDUCTION
//   - OPTZ_LOGGING_LEVEL, OPTZ_LOGGING_DEVELOPMENT
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable.
const Prefix = "OPTZ"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `split_words:"true" default:"0.0.0.0"`
	Port int    `split_words:"true" default:"8080"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PipelineConfig holds the limits and pass selection applied to every run.
type PipelineConfig struct {
	MaxInputBytes     int           `split_words:"true" default:"262144"`
	Budget            time.Duration `split_words:"true" default:"5s"`
	Workers           int           `split_words:"true" default:"4"`
	StrengthReduction bool          `split_words:"true" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `split_words:"true" default:"info"`
	Development bool   `split_words:"true" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Pipeline: PipelineConfig{
			MaxInputBytes: 262144,
			Budget:        5 * time.Second,
			Workers:       4,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Pipeline.MaxInputBytes < 0 {
		errs = append(errs, fmt.Errorf("max input bytes %d is negative", c.Pipeline.MaxInputBytes))
	}
	if c.Pipeline.Budget < 0 {
		errs = append(errs, fmt.Errorf("budget %v is negative", c.Pipeline.Budget))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
