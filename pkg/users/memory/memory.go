// Package memory provides an ephemeral users.Backend.
//
// Snapshots live only in process memory. Useful for tests and throwaway
// servers; everything registered is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/sandfs/pkg/users"
)

// Backend keeps the last saved snapshot in memory.
type Backend struct {
	mu   sync.Mutex
	snap *users.Snapshot
}

// New returns an uninitialized backend. Load fails with
// users.ErrNotInitialized until the first Save.
func New() *Backend {
	return &Backend{}
}

// NewInitialized returns a backend already holding an empty snapshot.
func NewInitialized() *Backend {
	return &Backend{snap: users.NewSnapshot()}
}

func (b *Backend) Load(ctx context.Context) (*users.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snap == nil {
		return nil, users.NotInitializedError("memory")
	}
	return clone(b.snap), nil
}

func (b *Backend) Save(ctx context.Context, snap *users.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.snap = clone(snap)
	return nil
}

func (b *Backend) Close() error { return nil }

func (b *Backend) Name() string { return "memory" }

func clone(snap *users.Snapshot) *users.Snapshot {
	out := users.NewSnapshot()
	for k, v := range snap.Passwords {
		out.Passwords[k] = v
	}
	for k, v := range snap.Privileges {
		out.Privileges[k] = v
	}
	return out
}
