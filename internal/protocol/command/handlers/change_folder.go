package handlers

// ChangeFolder moves the session to dir, which must resolve to a directory
// inside the user's sandbox.
func (h *Handler) ChangeFolder(ctx *Context, dir string) (*Response, error) {
	sess := ctx.Session

	next, err := h.guard(sess).ChangeFolder(sess.CurrentDirectory(), dir)
	if err != nil {
		return sandboxResponse(ctx, err)
	}

	sess.SetCurrentDirectory(next)
	return NewResponse(OutcomeDirectoryChanged, dir), nil
}
