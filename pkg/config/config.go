// Package config provides the process-wide configuration surface for the
// batch runtime: the fixed batch capacity, whether memory pooling is
// disabled, whether returned columns are zeroed, and the ambient logging and
// observability settings.
//
// The configuration is explicit: it is loaded once, validated, and then
// injected into registries and pools. Nothing in the runtime reads it from
// a global.
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Memory.BatchSize = 4096
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	reg := registry.New(registry.WithPoolOptions(cfg.Memory.PoolOptions()...))
package config

import (
	"time"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/pool"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// DefaultBatchSize is the number of rows held by one batch unless configured
// otherwise.
const DefaultBatchSize = 80000

// Config is the root configuration structure.
type Config struct {
	// Memory controls batch capacity and pooling behaviour
	Memory MemoryConfig `yaml:"memory" json:"memory" mapstructure:"memory"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Observability configures tracing and metrics exposition
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// MemoryConfig contains memory management settings.
type MemoryConfig struct {
	// BatchSize is the fixed row capacity of every batch and column
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
	// DisablePooling makes every Get allocate and every Return drop storage
	DisablePooling bool `yaml:"disable_pooling" json:"disable_pooling" mapstructure:"disable_pooling"`
	// ClearColumnsOnReturn zeroes column storage when it goes back to a pool
	ClearColumnsOnReturn bool `yaml:"clear_columns_on_return" json:"clear_columns_on_return" mapstructure:"clear_columns_on_return"`
	// Popcount selects the bit counting strategy (auto, table, intrinsic)
	Popcount string `yaml:"popcount" json:"popcount" mapstructure:"popcount"`
	// PressureThreshold is the system memory usage percent that triggers a pool sweep
	PressureThreshold float64 `yaml:"pressure_threshold" json:"pressure_threshold" mapstructure:"pressure_threshold"`
	// PressureInterval is how often system memory is sampled (0 disables the watcher)
	PressureInterval time.Duration `yaml:"pressure_interval" json:"pressure_interval" mapstructure:"pressure_interval"`
	// ResetOnFree also zeroes creation counters when pools are swept
	ResetOnFree bool `yaml:"reset_on_free" json:"reset_on_free" mapstructure:"reset_on_free"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableTracing activates otel tracing of registry sweeps
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
	// ServiceName is reported as the otel service name
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// MetricsAddr serves prometheus metrics when non-empty (e.g. ":9090")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
}

// Default returns a configuration with production defaults.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			BatchSize:            DefaultBatchSize,
			DisablePooling:       false,
			ClearColumnsOnReturn: true,
			Popcount:             bitvector.Auto.String(),
			PressureThreshold:    90,
			PressureInterval:     5 * time.Second,
			ResetOnFree:          false,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			EnableTracing:     false,
			TracingSampleRate: 0.1,
			ServiceName:       "trill",
		},
	}
}

// Validate checks the configuration and returns a config error for the
// first invalid field.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "tracing_sample_rate must be within [0, 1]").
			WithDetail("tracing_sample_rate", c.Observability.TracingSampleRate)
	}
	return nil
}

// Validate checks the memory section.
func (m *MemoryConfig) Validate() error {
	if m.BatchSize <= 0 {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "batch_size must be positive").
			WithDetail("batch_size", m.BatchSize)
	}
	if _, ok := bitvector.ParseMode(m.Popcount); !ok {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "popcount must be one of auto, table, intrinsic").
			WithDetail("popcount", m.Popcount)
	}
	if m.PressureThreshold < 0 || m.PressureThreshold > 100 {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "pressure_threshold must be a percentage").
			WithDetail("pressure_threshold", m.PressureThreshold)
	}
	if m.PressureInterval < 0 {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "pressure_interval cannot be negative").
			WithDetail("pressure_interval", m.PressureInterval)
	}
	return nil
}

// PoolOptions converts the pooling knobs into column pool options.
func (m *MemoryConfig) PoolOptions() []pool.Option {
	return []pool.Option{
		pool.WithClearOnReturn(m.ClearColumnsOnReturn),
		pool.WithPoolingDisabled(m.DisablePooling),
	}
}

// PopcountMode returns the parsed popcount strategy.
func (m *MemoryConfig) PopcountMode() bitvector.Mode {
	mode, _ := bitvector.ParseMode(m.Popcount)
	return mode
}

// WatcherEnabled reports whether the memory-pressure watcher should run.
func (m *MemoryConfig) WatcherEnabled() bool {
	return m.PressureInterval > 0 && m.PressureThreshold > 0
}
