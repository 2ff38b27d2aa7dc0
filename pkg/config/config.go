// Package config loads, defaults and validates the forchetta configuration
// from a YAML file, FORCHETTA_* environment variables and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mrosetti/forchetta/internal/server"
)

// Config is the complete server configuration.
//
// Sources in order of precedence: environment variables (FORCHETTA_*), the
// configuration file, built-in defaults.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configures the TCP listener and connection handling.
	Server server.Config `mapstructure:"server"`

	// Store selects and configures the persistence backend.
	Store StoreConfig `mapstructure:"store"`

	// Metrics configures the optional Prometheus exposition server.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum level to output: DEBUG, INFO, WARN or ERROR
	// (case-insensitive, normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// StoreConfig selects the store implementation. Only the option map matching
// Type is used.
type StoreConfig struct {
	// Type is "memory" or "badger".
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger holds badger-specific options; used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`

	// Backup configures periodic S3 snapshots of the badger store.
	Backup BackupConfig `mapstructure:"backup"`
}

// BackupConfig configures the S3 snapshot uploader.
type BackupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`

	// S3 holds the destination options, decoded by the backup factory.
	S3 map[string]any `mapstructure:"s3"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load reads configuration from file and environment, applies defaults and
// validates the result. An empty configPath falls back to the default
// location; a missing file there is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// FORCHETTA_LOGGING_LEVEL overrides logging.level, and so on.
	v.SetEnvPrefix("FORCHETTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// getConfigDir returns $XDG_CONFIG_HOME/forchetta, falling back to
// ~/.config/forchetta, or the current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forchetta")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "forchetta")
}
