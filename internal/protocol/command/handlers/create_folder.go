package handlers

// CreateFolder creates the subdirectory name in the current directory.
func (h *Handler) CreateFolder(ctx *Context, name string) (*Response, error) {
	if err := h.guard(ctx.Session).CreateFolder(ctx.Session.CurrentDirectory(), name); err != nil {
		return sandboxResponse(ctx, err)
	}
	return NewResponse(OutcomeDirectoryCreated), nil
}
