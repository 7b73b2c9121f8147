package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Line.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.Line.Port {
		return fmt.Errorf("server.metrics.port: %d is already used by adapters.line", cfg.Server.Metrics.Port)
	}

	switch cfg.Users.Backend {
	case "file":
		path, _ := cfg.Users.File["path"].(string)
		if path == "" {
			return fmt.Errorf("users.file.path: required when backend is file")
		}
		if within(cfg.Server.SessionRoot, path) {
			return fmt.Errorf("users.file.path: %s must not be inside server.session_root", path)
		}
	case "badger":
		path, _ := cfg.Users.Badger["db_path"].(string)
		inMemory, _ := cfg.Users.Badger["in_memory"].(bool)
		if path == "" && !inMemory {
			return fmt.Errorf("users.badger.db_path: required when backend is badger")
		}
		if path != "" && within(cfg.Server.SessionRoot, path) {
			return fmt.Errorf("users.badger.db_path: %s must not be inside server.session_root", path)
		}
	case "s3":
		if bucket, _ := cfg.Users.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("users.s3.bucket: required when backend is s3")
		}
	}

	return nil
}

// within reports whether path is root or lies below it. Both paths are made
// absolute and symlinks in their existing prefixes are resolved first.
func within(root, path string) bool {
	root, path = canonicalPath(root), canonicalPath(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// canonicalPath returns p as an absolute, clean path with symlinks resolved
// in its longest existing prefix. The missing remainder is appended as is.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}

	prefix, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(prefix); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(prefix)
		if parent == prefix {
			return abs
		}
		rest = filepath.Join(filepath.Base(prefix), rest)
		prefix = parent
	}
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
