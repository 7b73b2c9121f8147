package metrics

import "time"

// UserStoreMetrics provides observability for the user registry.
//
// Implementations collect the latency and outcome of persisted mutations
// (register, delete, load) and the number of registered users.
type UserStoreMetrics interface {
	// RecordOperation records a completed store operation.
	//
	// Parameters:
	//   - operation: "load", "register" or "delete"
	//   - backend: Backend name (e.g., "file", "badger", "s3")
	//   - duration: Time taken, including persistence
	//   - err: Error if the operation failed, nil if successful
	RecordOperation(operation string, backend string, duration time.Duration, err error)

	// SetRegisteredUsers updates the registered users gauge.
	SetRegisteredUsers(count int)
}

// NewNoopUserStoreMetrics returns a UserStoreMetrics that discards everything.
func NewNoopUserStoreMetrics() UserStoreMetrics {
	return noopUserStoreMetrics{}
}

type noopUserStoreMetrics struct{}

func (noopUserStoreMetrics) RecordOperation(operation string, backend string, duration time.Duration, err error) {
}
func (noopUserStoreMetrics) SetRegisteredUsers(count int) {}
