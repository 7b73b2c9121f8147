// Package badger provides a users.Backend persisted in BadgerDB.
//
// Key layout:
//
//	Data Type        Prefix   Key Format        Value
//	=========================================================
//	User record      "u:"     u:<username>      userRecord (JSON)
//	Init marker      "cfg:"   cfg:initialized   "1"
//
// A snapshot is written in a single transaction: stale user keys are deleted
// and current ones rewritten, so readers never observe a partial save.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/sandfs/pkg/users"
)

const (
	prefixUser     = "u:"
	keyInitialized = "cfg:initialized"
)

// userRecord is the JSON value stored under each u:<username> key.
type userRecord struct {
	Password  string `json:"password"`
	Privilege string `json:"privilege"`
}

// Config configures the badger backend.
type Config struct {
	// DBPath is the directory holding the BadgerDB files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk (tests only)
	InMemory bool `mapstructure:"in_memory"`
}

// Backend stores one key per user in BadgerDB.
type Backend struct {
	db   *badger.DB
	path string
}

// New opens (or creates) the database described by cfg.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger user backend: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	// The user registry is tiny; keep caches and log noise small.
	opts = opts.WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &Backend{db: db, path: cfg.DBPath}, nil
}

func (b *Backend) Load(ctx context.Context) (*users.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := users.NewSnapshot()

	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(keyInitialized)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return users.NotInitializedError("badger:" + b.location())
			}
			return fmt.Errorf("read init marker: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixUser)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), prefixUser)

			var rec userRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode user %q: %w", name, err)
			}

			snap.Passwords[name] = rec.Password
			snap.Privileges[name] = users.Privilege(rec.Privilege)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (b *Backend) Save(ctx context.Context, snap *users.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		// ====================================================================
		// Step 1: Delete users no longer present
		// ====================================================================

		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixUser)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			name := strings.TrimPrefix(string(it.Item().Key()), prefixUser)
			if _, ok := snap.Passwords[name]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}

		// ====================================================================
		// Step 2: Write current users and the init marker
		// ====================================================================

		for name, pw := range snap.Passwords {
			val, err := json.Marshal(userRecord{
				Password:  pw,
				Privilege: string(snap.Privileges[name]),
			})
			if err != nil {
				return fmt.Errorf("encode user %q: %w", name, err)
			}
			if err := txn.Set([]byte(prefixUser+name), val); err != nil {
				return fmt.Errorf("write user %q: %w", name, err)
			}
		}

		return txn.Set([]byte(keyInitialized), []byte("1"))
	})
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (b *Backend) Name() string { return "badger" }

func (b *Backend) location() string {
	if b.path == "" {
		return "memory"
	}
	return b.path
}
