package handlers

// Quit logs the session out and asks the connection to close once the
// response is written. It always succeeds.
func (h *Handler) Quit(ctx *Context) (*Response, error) {
	if ctx.Session.Authenticated() {
		ctx.Log.Info("User %q logged out", ctx.Session.Identity())
	}
	ctx.Session.Reset()

	resp := NewResponse(OutcomeLoggedOut)
	resp.Close = true
	return resp, nil
}
