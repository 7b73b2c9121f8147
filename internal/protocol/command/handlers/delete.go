package handlers

import (
	"errors"

	"github.com/marmos91/sandfs/pkg/users"
)

// Delete removes target and its sandbox. The requester confirms with their
// own password, not the target's.
//
// Checks, in order: requester is admin, target exists, password matches.
// Deleting oneself logs the session out.
func (h *Handler) Delete(ctx *Context, target, password string) (*Response, error) {
	sess := ctx.Session
	requester := sess.Identity()

	self, err := h.Store.Delete(ctx.Context, requester, password, target)
	switch {
	case err == nil:
	case errors.Is(err, users.ErrAdminRequired):
		return NewResponse(OutcomeAdminRequired), nil
	case errors.Is(err, users.ErrUserNotFound):
		return NewResponse(OutcomeUserNotFound, target), nil
	case errors.Is(err, users.ErrWrongPassword):
		ctx.Log.Info("Delete of %q by %q rejected: wrong password", target, requester)
		return NewResponse(OutcomeWrongPassword), nil
	default:
		return nil, err
	}

	if self {
		sess.Reset()
	}
	ctx.Log.Debug("User %q deleted by %q", target, requester)
	return NewResponse(OutcomeUserDeleted, target), nil
}
