package handlers

// Commands returns the help text listing every verb.
func (h *Handler) Commands(ctx *Context) (*Response, error) {
	return NewResponse(OutcomeHelp), nil
}
