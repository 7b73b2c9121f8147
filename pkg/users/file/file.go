// Package file provides a users.Backend persisted as a single JSON file.
//
// The file layout is:
//
//	{"passwords":[{"alice":"secret"}],"privileges":[{"alice":"admin"}]}
//
// Saves write a temporary file in the same directory, fsync it and rename it
// over the target, so a crash never leaves a truncated store behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/sandfs/pkg/users"
)

// Backend persists snapshots to Path.
type Backend struct {
	path string
}

// Config configures the file backend.
type Config struct {
	// Path is the JSON document holding the user store
	Path string `mapstructure:"path"`
}

// New creates a file backend. The file itself is not touched until Load or
// Save; the parent directory must exist.
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file user backend: path is required")
	}
	return &Backend{path: cfg.Path}, nil
}

// Path returns the location of the JSON document.
func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) Load(ctx context.Context) (*users.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, users.NotInitializedError(b.path)
		}
		return nil, fmt.Errorf("read user store %s: %w", b.path, err)
	}

	return users.DecodeSnapshot(data)
}

func (b *Backend) Save(ctx context.Context, snap *users.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := users.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 1: Write temp file next to the target
	// ========================================================================

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp user store in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp user store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp user store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp user store: %w", err)
	}

	// ========================================================================
	// Step 2: Atomically replace
	// ========================================================================

	if err := os.Rename(tmpPath, b.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace user store %s: %w", b.path, err)
	}

	return nil
}

func (b *Backend) Close() error { return nil }

func (b *Backend) Name() string { return "file" }
