package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides read by LoadWithEnv, e.g.
// TRILL_MEMORY_BATCH_SIZE=4096.
const EnvPrefix = "TRILL"

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadWithEnv builds a Config from defaults, an optional YAML file and
// TRILL_* environment overrides, then validates it. An empty path skips the
// file.
func LoadWithEnv(filePath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if filePath != "" {
		v.SetConfigFile(filePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so AutomaticEnv can override
// keys that are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("memory.batch_size", cfg.Memory.BatchSize)
	v.SetDefault("memory.disable_pooling", cfg.Memory.DisablePooling)
	v.SetDefault("memory.clear_columns_on_return", cfg.Memory.ClearColumnsOnReturn)
	v.SetDefault("memory.popcount", cfg.Memory.Popcount)
	v.SetDefault("memory.pressure_threshold", cfg.Memory.PressureThreshold)
	v.SetDefault("memory.pressure_interval", cfg.Memory.PressureInterval)
	v.SetDefault("memory.reset_on_free", cfg.Memory.ResetOnFree)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.development", cfg.Logging.Development)
	v.SetDefault("logging.encoding", cfg.Logging.Encoding)
	v.SetDefault("observability.enable_tracing", cfg.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.metrics_addr", cfg.Observability.MetricsAddr)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
