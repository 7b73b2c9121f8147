package users

import "context"

// Backend persists user store snapshots.
//
// Implementations live in sub-packages (file, badger, s3, memory) and are
// selected through configuration. The Store serializes all calls to Save
// under its write lock, so backends only need to be safe for the Load/Save/
// Close sequence issued by a single Store.
type Backend interface {
	// Load returns the persisted snapshot.
	//
	// Returns an error matching ErrNotInitialized if nothing was ever saved,
	// or ErrCorrupt if the persisted data fails validation.
	Load(ctx context.Context) (*Snapshot, error)

	// Save atomically replaces the persisted snapshot.
	//
	// Either the whole snapshot is durable when Save returns nil, or the
	// previous snapshot is still in place.
	Save(ctx context.Context, snap *Snapshot) error

	// Close releases resources held by the backend.
	Close() error

	// Name identifies the backend in logs (e.g. "file", "badger").
	Name() string
}
