package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/sandfs/pkg/adapter/line"
	"github.com/marmos91/sandfs/pkg/gc"
	"github.com/spf13/viper"
)

// Config represents the complete SandFS configuration.
//
// This structure captures all configurable aspects of the SandFS server including:
//   - Logging configuration
//   - Server-wide settings (session root, shutdown, metrics)
//   - User store backend selection and configuration (backend-specific)
//   - Sandbox behavior
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SANDFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each user store backend defines its own configuration type. The Config
// struct contains type-specific sections (e.g., users.file, users.badger)
// and only the section matching the selected backend is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Users specifies the user store backend and its configuration
	Users UsersConfig `mapstructure:"users" yaml:"users"`

	// Sandbox controls per-session file access behavior
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// SessionRoot is the directory holding one sandbox per user
	SessionRoot string `mapstructure:"session_root" validate:"required" yaml:"session_root"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC controls removal of sandboxes that no user record references
	GC gc.Config `mapstructure:"gc" yaml:"gc"`
}

// MetricsConfig configures the Prometheus /metrics endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics server
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// UsersConfig specifies the user store backend.
//
// The Backend field determines which implementation is used.
// Only the corresponding backend-specific section is used.
type UsersConfig struct {
	// Backend specifies which user store implementation to use
	// Valid values: file, badger, s3, memory
	Backend string `mapstructure:"backend" validate:"required,oneof=file badger s3 memory" yaml:"backend"`

	// File contains JSON file backend configuration
	// Only used when Backend = "file"
	File map[string]any `mapstructure:"file" yaml:"file"`

	// Badger contains BadgerDB backend configuration
	// Only used when Backend = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// S3 contains S3 backend configuration
	// Only used when Backend = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// SandboxConfig controls per-session file access behavior.
type SandboxConfig struct {
	// ChunkSize is the number of characters read_file returns per call
	ChunkSize int `mapstructure:"chunk_size" validate:"gt=0" yaml:"chunk_size"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Line contains line protocol configuration.
	// Uses the line.LineConfig type directly to avoid duplication.
	Line line.LineConfig `mapstructure:"line" yaml:"line"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SANDFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration like Load, but requires the config file to
// exist and explains how to create it when it does not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !ConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  sandfs config init\n\n"+
				"Or specify a custom config file:\n"+
				"  sandfs <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  sandfs config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use SANDFS_ prefix and underscores
	// Example: SANDFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SANDFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about, so
	// register the scalar keys that have no value in a sparse config file.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/sandfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the settings that can be supplied through SANDFS_* variables
// alone.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.session_root",
	"server.metrics.enabled",
	"server.metrics.port",
	"users.backend",
	"sandbox.chunk_size",
	"adapters.line.port",
	"adapters.line.max_connections",
	"adapters.line.max_line_length",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sandfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "sandfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
