// Package handlers implements the individual sandfs verbs.
//
// Each handler receives a Context carrying the connection's session and
// returns a Response rendered from a fixed outcome table. Domain failures
// (wrong password, path outside the sandbox, existing folder) are Responses;
// only I/O failures are returned as errors, and they end the connection.
//
// Preconditions shared by several verbs (argument count, authentication,
// admin privilege) are enforced by the dispatcher before a handler runs.
package handlers

import (
	"context"
	"errors"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/sandbox"
	"github.com/marmos91/sandfs/pkg/session"
	"github.com/marmos91/sandfs/pkg/users"
)

// Context carries per-command state into a handler.
type Context struct {
	// Context is cancelled when the server shuts down or the connection
	// closes
	Context context.Context

	// Session is the connection's session, owned by the calling goroutine
	Session *session.Session

	// Log is the connection's logger
	Log *logger.Logger
}

// Handler implements the verbs on top of the shared user store.
type Handler struct {
	Store *users.Store
}

// NewHandler creates a Handler backed by store.
func NewHandler(store *users.Store) *Handler {
	return &Handler{Store: store}
}

// guard returns the sandbox guard of the session's user.
func (h *Handler) guard(sess *session.Session) *sandbox.Guard {
	return sandbox.New(h.Store.SandboxRoot(sess.Identity()))
}

// sandboxResponse translates a sandbox error into a response.
//
// A vanished current directory resets the session to the sandbox root.
// Errors that are not sandbox rule violations are returned unchanged.
func sandboxResponse(ctx *Context, err error) (*Response, error) {
	var sbErr *sandbox.Error
	if !errors.As(err, &sbErr) {
		return nil, err
	}

	switch sbErr.Code {
	case sandbox.ErrCodeDirectoryGone:
		ctx.Log.Warn("Current directory %q vanished, resetting to sandbox root", ctx.Session.CurrentDirectory())
		ctx.Session.SetCurrentDirectory("")
		return NewResponse(OutcomeIncorrectDirectory), nil
	case sandbox.ErrCodeIncorrectDirectory:
		return NewResponse(OutcomeIncorrectDirectory), nil
	case sandbox.ErrCodeDirectoryExists:
		return NewResponse(OutcomeDirectoryPresent), nil
	case sandbox.ErrCodeInvalidName:
		return NewResponse(OutcomeInvalidName), nil
	case sandbox.ErrCodeIsFile:
		return NewResponse(OutcomePathIsFile), nil
	case sandbox.ErrCodeIsDirectory:
		return NewResponse(OutcomePathIsDirectory), nil
	case sandbox.ErrCodeFileNotFound:
		return NewResponse(OutcomeReadWrongPath), nil
	default:
		return nil, err
	}
}
