package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "Level") {
		t.Errorf("Expected error to mention Level, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid log format")
	}
}

func TestValidate_InvalidUsersBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Users.Backend = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for unknown users backend")
	}
}

func TestValidate_InvalidChunkSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Sandbox.ChunkSize = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for negative chunk size")
	}
}

func TestValidate_InvalidLinePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Line.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for port out of range")
	}
}

func TestValidate_NegativeMaxConnections(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Line.MaxConnections = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for negative max connections")
	}
}

func TestValidate_InvalidShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for negative shutdown timeout")
	}
}

func TestValidate_NoAdaptersEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Line.Enabled = false

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error when no adapters are enabled")
	}
	if !strings.Contains(err.Error(), "adapter") {
		t.Errorf("Expected adapter error, got: %v", err)
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = cfg.Adapters.Line.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error when metrics and line adapter share a port")
	}
}

func TestValidate_UserStoreInsideSessionRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.SessionRoot = "/srv/sandfs"
	cfg.Users.File["path"] = "/srv/sandfs/alice/users.json"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for user store inside the session root")
	}
	if !strings.Contains(err.Error(), "session_root") {
		t.Errorf("Expected session_root error, got: %v", err)
	}
}

func TestValidate_BackendRequiredKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"file path", func(c *Config) { c.Users.File["path"] = "" }},
		{"badger db_path", func(c *Config) {
			c.Users.Backend = "badger"
			c.Users.Badger["db_path"] = ""
		}},
		{"s3 bucket", func(c *Config) { c.Users.Backend = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestValidate_BadgerInMemoryNeedsNoPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Users.Backend = "badger"
	cfg.Users.Badger = map[string]any{"in_memory": true}

	if err := Validate(cfg); err != nil {
		t.Fatalf("In-memory badger should not need db_path: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "Info", "WARN", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		ApplyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			t.Errorf("Level %q should be valid after normalization: %v", level, err)
		}
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, path string
		want       bool
	}{
		{"/srv/sandfs", "/srv/sandfs", true},
		{"/srv/sandfs", "/srv/sandfs/users.json", true},
		{"/srv/sandfs", "/srv/users.json", false},
		{"/srv/sandfs", "/srv/sandfs-users.json", false},
		{"/srv/sandfs/", "/srv/sandfs/a/../b", true},
		{"/srv/sandfs", "/srv/sandfs/../other", false},
	}
	for _, tt := range tests {
		if got := within(tt.root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestWithin_MixedRelativeAndAbsolute(t *testing.T) {
	testChdir(t, t.TempDir())

	abs, err := filepath.Abs(filepath.Join("session", "users.json"))
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}
	if !within("session", abs) {
		t.Errorf("within(%q, %q) = false, want true", "session", abs)
	}

	root, err := filepath.Abs("session")
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}
	if !within(root, filepath.Join("session", "users.json")) {
		t.Errorf("within(%q, relative path) = false, want true", root)
	}
	if within("session", filepath.Join("other", "users.json")) {
		t.Error("within reported a sibling directory as inside the root")
	}
}

func TestWithin_SymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if !within(link, filepath.Join(real, "users.json")) {
		t.Error("registry under the target of a symlinked root not detected")
	}
	if !within(real, filepath.Join(link, "sub", "users.db")) {
		t.Error("registry reached through a symlink into the root not detected")
	}
}

func TestValidate_RelativeSessionRootContainsRegistry(t *testing.T) {
	testChdir(t, t.TempDir())

	abs, err := filepath.Abs(filepath.Join("session", "users.json"))
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}

	cfg := GetDefaultConfig()
	cfg.Server.SessionRoot = "session"
	cfg.Users.Backend = "file"
	cfg.Users.File["path"] = abs

	err = Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for a registry inside a relative session root")
	}
	if !strings.Contains(err.Error(), "users.file.path") {
		t.Errorf("Expected users.file.path error, got: %v", err)
	}
}

// testChdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restoring working directory failed: %v", err)
		}
	})
}
