package adapter

import (
	"context"

	"github.com/marmos91/sandfs/pkg/users"
)

// Adapter represents a client-facing protocol server managed by SandServer.
//
// Each adapter speaks one wire protocol and provides a unified interface for
// lifecycle management. All adapters share the same user store, so a user
// registered through one adapter can log in through any other.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Store injection: SetStore() provides the shared user store
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetStore() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active sessions to finish (with timeout)
	//   - Clean up resources
	//
	// If Serve returns before context cancellation, SandServer treats it as
	// a fatal error and stops all other adapters.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetStore injects the shared user store.
	//
	// Called exactly once by SandServer before Serve(), after the store has
	// been loaded. No synchronization needed.
	SetStore(store *users.Store)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded timeout or encountered errors
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is listening on.
	//
	// Before Serve() binds, this is the configured port (a configured 0 means
	// the adapter's default). Afterwards it is the bound port, which differs
	// when the caller handed the adapter a listener of its own, for example
	// one bound to an ephemeral port.
	Port() int
}
