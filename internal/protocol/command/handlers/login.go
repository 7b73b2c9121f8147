package handlers

// Login authenticates the session.
//
// Checks, in order: already authenticated, unknown user, wrong password. On
// success the session starts at the sandbox root with no read cursors. The
// same user may be logged in on any number of connections.
func (h *Handler) Login(ctx *Context, username, password string) (*Response, error) {
	sess := ctx.Session

	if sess.Authenticated() {
		return NewResponse(OutcomeAlreadyLoggedIn), nil
	}
	if !h.Store.Contains(username) {
		return NewResponse(OutcomeUnknownUser), nil
	}
	if !h.Store.Verify(username, password) {
		ctx.Log.Info("Failed login for %q", username)
		return NewResponse(OutcomeWrongPassword), nil
	}

	sess.Login(username)
	ctx.Log.Info("User %q logged in", username)
	return NewResponse(OutcomeLoggedIn), nil
}
