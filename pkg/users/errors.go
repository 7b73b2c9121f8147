package users

import "fmt"

// StoreError represents a domain error from user store operations.
//
// These are business logic errors (duplicate user, wrong password, etc.)
// as opposed to infrastructure errors (disk full, network failure), which
// are returned wrapped with fmt.Errorf.
//
// The command interpreter translates StoreError codes into client responses.
// Compare with errors.Is against the exported sentinels:
//
//	if errors.Is(err, users.ErrDuplicateUser) { ... }
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Username is the user the error relates to (if applicable)
	Username string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Username != "" {
		return e.Message + ": " + e.Username
	}
	return e.Message
}

// Is matches any StoreError carrying the same code.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a user store error.
type ErrorCode int

const (
	// ErrCodeDuplicateUser indicates the username is already registered
	ErrCodeDuplicateUser ErrorCode = iota + 1

	// ErrCodeInvalidFields indicates an empty field, an unknown privilege
	// or a username that cannot be used as a directory name
	ErrCodeInvalidFields

	// ErrCodeUserNotFound indicates the target user does not exist
	ErrCodeUserNotFound

	// ErrCodeAdminRequired indicates the requester lacks admin privilege
	ErrCodeAdminRequired

	// ErrCodeWrongPassword indicates a password check failed
	ErrCodeWrongPassword

	// ErrCodeNotInitialized indicates the backing store does not exist yet
	ErrCodeNotInitialized

	// ErrCodeCorrupt indicates the persisted data is inconsistent
	ErrCodeCorrupt

	// ErrCodeAlreadyInitialized indicates Initialize found existing data
	ErrCodeAlreadyInitialized
)

// Sentinels for errors.Is comparisons.
var (
	ErrDuplicateUser  = &StoreError{Code: ErrCodeDuplicateUser, Message: "user already exists"}
	ErrInvalidFields  = &StoreError{Code: ErrCodeInvalidFields, Message: "invalid user fields"}
	ErrUserNotFound   = &StoreError{Code: ErrCodeUserNotFound, Message: "user not found"}
	ErrAdminRequired  = &StoreError{Code: ErrCodeAdminRequired, Message: "admin privilege required"}
	ErrWrongPassword  = &StoreError{Code: ErrCodeWrongPassword, Message: "wrong password"}
	ErrNotInitialized = &StoreError{Code: ErrCodeNotInitialized, Message: "user store not initialized"}
	ErrCorrupt        = &StoreError{Code: ErrCodeCorrupt, Message: "user store corrupt"}

	ErrAlreadyInitialized = &StoreError{Code: ErrCodeAlreadyInitialized, Message: "user store already initialized"}
)

func newError(code ErrorCode, message, username string) *StoreError {
	return &StoreError{Code: code, Message: message, Username: username}
}

// NotInitializedError builds an ErrNotInitialized for the given location.
// Backends use it when their backing object/file/database has never been saved.
func NotInitializedError(location string) *StoreError {
	return &StoreError{
		Code:    ErrCodeNotInitialized,
		Message: fmt.Sprintf("user store not initialized at %s (run 'sandfs init')", location),
	}
}

func corruptError(format string, args ...any) *StoreError {
	return &StoreError{Code: ErrCodeCorrupt, Message: fmt.Sprintf(format, args...)}
}
