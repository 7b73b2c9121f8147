package sandbox

// Error represents a domain error from sandbox operations.
//
// These are rule violations (path outside the sandbox, existing folder,
// missing file) as opposed to I/O failures, which are returned wrapped with
// fmt.Errorf and terminate the connection.
//
// The command interpreter translates Error codes into client responses.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the client-supplied path the error relates to (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is matches any sandbox Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a sandbox error.
type ErrorCode int

const (
	// ErrCodeIncorrectDirectory indicates the target is not a directory
	// inside the sandbox
	ErrCodeIncorrectDirectory ErrorCode = iota + 1

	// ErrCodeDirectoryGone indicates the session's current directory no
	// longer exists; callers reset the session to the sandbox root
	ErrCodeDirectoryGone

	// ErrCodeDirectoryExists indicates a subdirectory with that name exists
	ErrCodeDirectoryExists

	// ErrCodeInvalidName indicates the name is not a single usable path
	// component
	ErrCodeInvalidName

	// ErrCodeIsFile indicates a non-directory entry occupies the name
	ErrCodeIsFile

	// ErrCodeIsDirectory indicates a directory occupies the name of a file
	ErrCodeIsDirectory

	// ErrCodeFileNotFound indicates the name is not a regular file of the
	// current directory
	ErrCodeFileNotFound
)

// Sentinels for errors.Is comparisons.
var (
	ErrIncorrectDirectory = &Error{Code: ErrCodeIncorrectDirectory, Message: "incorrect directory"}
	ErrDirectoryGone      = &Error{Code: ErrCodeDirectoryGone, Message: "current directory no longer exists"}
	ErrDirectoryExists    = &Error{Code: ErrCodeDirectoryExists, Message: "directory already exists"}
	ErrInvalidName        = &Error{Code: ErrCodeInvalidName, Message: "invalid name"}
	ErrIsFile             = &Error{Code: ErrCodeIsFile, Message: "path is a file"}
	ErrIsDirectory        = &Error{Code: ErrCodeIsDirectory, Message: "path is a directory"}
	ErrFileNotFound       = &Error{Code: ErrCodeFileNotFound, Message: "file not found"}
)

func newError(sentinel *Error, path string) *Error {
	return &Error{Code: sentinel.Code, Message: sentinel.Message, Path: path}
}
