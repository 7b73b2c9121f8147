package handlers

// WriteFile creates name holding data, or appends a newline and data to it
// when the file already exists.
func (h *Handler) WriteFile(ctx *Context, name, data string) (*Response, error) {
	created, err := h.guard(ctx.Session).WriteFile(ctx.Session.CurrentDirectory(), name, data)
	if err != nil {
		return sandboxResponse(ctx, err)
	}

	if created {
		return NewResponse(OutcomeWriteNewPath), nil
	}
	return NewResponse(OutcomeWriteExisting), nil
}
