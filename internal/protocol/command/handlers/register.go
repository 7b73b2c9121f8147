package handlers

import (
	"errors"

	"github.com/marmos91/sandfs/pkg/users"
)

// Register creates a new account with an empty sandbox.
//
// Registration does not require a login and does not change the session.
//
// Outcomes:
//   - OutcomeRegistered on success
//   - OutcomeUsernameUnavailable when the name is taken
//   - OutcomeRegisterInvalid for an empty field, an unusable username or an
//     unknown privilege
func (h *Handler) Register(ctx *Context, username, password, privilege string) (*Response, error) {
	err := h.Store.Register(ctx.Context, username, password, privilege)
	switch {
	case err == nil:
		ctx.Log.Debug("Registered user %q", username)
		return NewResponse(OutcomeRegistered), nil
	case errors.Is(err, users.ErrDuplicateUser):
		return NewResponse(OutcomeUsernameUnavailable), nil
	case errors.Is(err, users.ErrInvalidFields):
		ctx.Log.Debug("Register rejected: %v", err)
		return NewResponse(OutcomeRegisterInvalid), nil
	default:
		return nil, err
	}
}
