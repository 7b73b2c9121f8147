package handlers

import "strings"

// List returns the entries of the current directory, one per line.
func (h *Handler) List(ctx *Context) (*Response, error) {
	names, err := h.guard(ctx.Session).List(ctx.Session.CurrentDirectory())
	if err != nil {
		return sandboxResponse(ctx, err)
	}
	return NewResponse(OutcomeListing, strings.Join(names, "\n")), nil
}
