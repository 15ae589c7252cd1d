package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PTYBRIDGE"

// Config holds all bridge configuration.
type Config struct {
	Logging LogConfig     `envconfig:"LOG"`
	Output  OutputConfig  `envconfig:"OUTPUT"`
	Session SessionConfig `envconfig:"SESSION"`
	Metrics MetricsConfig `envconfig:"METRICS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
	Output      string `envconfig:"OUTPUT" default:"stderr"`
}

// OutputConfig holds the pty output coalescing policy.
type OutputConfig struct {
	FlushInterval time.Duration `envconfig:"FLUSH_INTERVAL" default:"16ms"`
	MaxBufferSize int           `envconfig:"MAX_BUFFER_SIZE" default:"65536"`
	DrainTimeout  time.Duration `envconfig:"DRAIN_TIMEOUT" default:"250ms"`
}

// SessionConfig holds child process lifecycle configuration.
type SessionConfig struct {
	KillTimeout time.Duration `envconfig:"KILL_TIMEOUT" default:"1s"`
}

// MetricsConfig holds metrics exposition configuration.
type MetricsConfig struct {
	Addr string `envconfig:"ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      "stderr",
		},
		Output: OutputConfig{
			FlushInterval: 16 * time.Millisecond,
			MaxBufferSize: 64 * 1024,
			DrainTimeout:  250 * time.Millisecond,
		},
		Session: SessionConfig{
			KillTimeout: time.Second,
		},
	}
}

// Validate rejects values the bridge cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Output.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush interval must be positive, got %s", c.Output.FlushInterval))
	}
	if c.Output.MaxBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("max buffer size must be positive, got %d", c.Output.MaxBufferSize))
	}
	if c.Output.DrainTimeout <= 0 {
		errs = append(errs, fmt.Errorf("drain timeout must be positive, got %s", c.Output.DrainTimeout))
	}
	if c.Session.KillTimeout <= 0 {
		errs = append(errs, fmt.Errorf("kill timeout must be positive, got %s", c.Session.KillTimeout))
	}
	if c.Logging.Output == "stdout" {
		errs = append(errs, errors.New("log output cannot be stdout, it carries the protocol"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
