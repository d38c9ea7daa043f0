package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config groups the pipeline settings consumed by the orchestrator. A CLI or
// service embedding the library produces one of these and hands it over; the
// core never reads flags or files itself.
type Config struct {
	// BatchSize is the number of records grouped into one output batch.
	BatchSize int `envconfig:"BATCH_SIZE" default:"100"`

	// ItemsPerSecond caps how many records per second flow through the rate
	// governor. The governor paces, it never drops.
	ItemsPerSecond int `envconfig:"ITEMS_PER_SECOND" default:"1000"`

	// TotalExpectedItems drives decile progress reporting. Zero means the
	// total is unknown and progress runs in count-only mode.
	TotalExpectedItems int `envconfig:"TOTAL_EXPECTED_ITEMS" default:"0"`

	// PerStageBufferCapacity is the credit capacity of every stage link. The
	// sum over all links bounds pipeline memory.
	PerStageBufferCapacity int `envconfig:"PER_STAGE_BUFFER_CAPACITY" default:"16"`

	// Memory watermarks for the resource monitor. The gap between them is
	// the hysteresis preventing pause/resume oscillation. Zero high watermark
	// disables the monitor.
	MemoryHighWatermarkBytes uint64 `envconfig:"MEMORY_HIGH_WATERMARK_BYTES" default:"0"`
	MemoryLowWatermarkBytes  uint64 `envconfig:"MEMORY_LOW_WATERMARK_BYTES" default:"0"`

	// MonitorInterval is how often the resource monitor samples memory.
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL" default:"250ms"`

	// ShutdownTimeout bounds how long a failing pipeline waits for stages to
	// acknowledge cancellation before giving up on them.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	// Metrics configuration.
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"false"`
	// MetricsPort is the port where Prometheus metrics will be exposed.
	MetricsPort int `envconfig:"METRICS_PORT" default:"0"`
}

// FromEnv loads a Config from LOGFLUME_-prefixed environment variables and
// validates it.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LOGFLUME", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent. It
// returns all problems joined, not just the first one.
func (c *Config) Validate() error {
	var errs []error

	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.ItemsPerSecond <= 0 {
		errs = append(errs, errors.New("items per second must be positive"))
	}
	if c.TotalExpectedItems < 0 {
		errs = append(errs, errors.New("total expected items cannot be negative"))
	}
	if c.PerStageBufferCapacity <= 0 {
		errs = append(errs, errors.New("per-stage buffer capacity must be positive"))
	}
	errs = append(errs, c.validateWatermarks()...)
	if c.MonitorInterval < 0 {
		errs = append(errs, errors.New("monitor interval cannot be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}

	return errors.Join(errs...)
}

// validateWatermarks checks the hysteresis pair. Both zero disables the
// monitor and is valid.
func (c *Config) validateWatermarks() []error {
	if c.MemoryHighWatermarkBytes == 0 && c.MemoryLowWatermarkBytes == 0 {
		return nil
	}
	var errs []error
	if c.MemoryHighWatermarkBytes == 0 {
		errs = append(errs, errors.New("memory high watermark required when low watermark is set"))
	}
	if c.MemoryLowWatermarkBytes == 0 {
		errs = append(errs, errors.New("memory low watermark required when high watermark is set"))
	}
	if c.MemoryLowWatermarkBytes >= c.MemoryHighWatermarkBytes {
		errs = append(errs, errors.New("memory low watermark must be below the high watermark"))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// MonitorEnabled reports whether the resource monitor should run.
func (c *Config) MonitorEnabled() bool {
	return c.MemoryHighWatermarkBytes > 0
}
