package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/sandfs/pkg/adapter/line"
	"github.com/marmos91/sandfs/pkg/session"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific option maps get defaults for every backend, so a
//     generated config file documents all of them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyUsersDefaults(&cfg.Users, cfg.Server.SessionRoot)
	applySandboxDefaults(&cfg.Sandbox)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.SessionRoot == "" {
		cfg.SessionRoot = "/tmp/sandfs/session"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = time.Hour
	}
}

// applyUsersDefaults sets user store defaults. File locations default to
// siblings of the session root so that sandboxes and the registry live
// together but a user can never name the registry from inside a sandbox.
func applyUsersDefaults(cfg *UsersConfig, sessionRoot string) {
	if cfg.Backend == "" {
		cfg.Backend = "file"
	}

	if cfg.File == nil {
		cfg.File = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	base := filepath.Dir(filepath.Clean(sessionRoot))

	if _, ok := cfg.File["path"]; !ok {
		cfg.File["path"] = filepath.Join(base, "users.json")
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(base, "users.db")
	}
	if _, ok := cfg.S3["key"]; !ok {
		cfg.S3["key"] = "sandfs/users.json"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

// applySandboxDefaults sets sandbox defaults.
func applySandboxDefaults(cfg *SandboxConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = session.DefaultChunkSize
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the line adapter by default if no adapters are configured, so a
	// config loaded without a file passes validation. An explicit
	// enabled: false together with a port keeps it disabled.
	if !cfg.Line.Enabled && cfg.Line.Port == 0 {
		cfg.Line.Enabled = true
	}

	applyLineDefaults(&cfg.Line)
}

// applyLineDefaults sets line adapter defaults.
func applyLineDefaults(cfg *line.LineConfig) {
	if cfg.Port == 0 {
		cfg.Port = line.DefaultPort
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = line.DefaultMaxLineLength
	}

	// RateLimit defaults to disabled
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Line: line.LineConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
