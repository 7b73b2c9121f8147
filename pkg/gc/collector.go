// Package gc removes orphaned sandboxes from the session root.
//
// A sandbox is orphaned when no user record references it. This can occur due to:
//   - Server crashes between moving a deleted sandbox aside and removing it
//   - Failed tombstone removal after a successful delete
//   - A forced re-initialization of the user store, which drops every record
//
// The collector compares the entries of the session root against the
// registered usernames and removes the difference through the user store, so
// removal is serialized with registrations.
package gc

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/users"
)

// Collector performs periodic garbage collection of orphaned sandboxes.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store    *users.Store
	config   Config
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether periodic collection runs
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is how often to run garbage collection (default: 1h)
	Interval time.Duration `mapstructure:"interval" validate:"min=0" yaml:"interval"`

	// DryRun logs what would be removed without removing it
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// NewCollector creates a collector for the session root of store.
//
// The collector is initialized but not started. Call Start() to begin
// background garbage collection.
func NewCollector(store *users.Store, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}

	return &Collector{
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background garbage collection. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Sandbox garbage collection disabled")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	logger.Info("Starting sandbox garbage collector: interval=%s dry_run=%v",
		c.config.Interval, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for an in-progress run to
// finish, or for ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.doneCh:
		logger.Debug("Sandbox garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Sandbox garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection and blocks until it completes.
//
// Used for the startup sweep and in tests.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Sandbox garbage collection failed: %v", err)
			} else if stats.OrphanedCount > 0 {
				logger.Info("Sandbox garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single garbage collection run:
//  1. List the session root
//  2. Compute orphaned = existing - registered
//  3. Remove orphaned entries through the store
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	root := c.store.SessionRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		stats.EndTime = time.Now()
		return stats, fmt.Errorf("failed to list session root: %w", err)
	}
	stats.ExistingCount = uint64(len(entries))

	// Existing entries are listed before the registered names are read, so a
	// user registered in between is never mistaken for an orphan.
	var orphaned []string
	for _, entry := range entries {
		if !c.store.Contains(entry.Name()) {
			orphaned = append(orphaned, entry.Name())
		}
	}
	stats.ReferencedCount = uint64(c.store.Count())
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		stats.EndTime = time.Now()
		return stats, nil
	}

	if c.config.DryRun {
		for _, name := range orphaned {
			logger.Info("GC: DRY RUN - would remove %s", name)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	for _, name := range orphaned {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		removed, err := c.store.RemoveOrphan(ctx, name)
		switch {
		case err != nil:
			logger.Warn("GC: failed to remove %s: %v", name, err)
			stats.FailedCount++
		case removed:
			logger.Debug("GC: removed orphaned sandbox %s", name)
			stats.DeletedCount++
		}
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Number of registered users
	ExistingCount   uint64    // Number of entries in the session root
	OrphanedCount   uint64    // Number of entries without a user record
	DeletedCount    uint64    // Number of orphaned entries removed
	FailedCount     uint64    // Number of orphaned entries that failed to be removed
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
