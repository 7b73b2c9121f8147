package handlers

// ReadFile returns the next chunk of the regular file name in the current
// directory, prefixed with its character offset.
//
// Each session keeps one cursor per file. Successive reads walk through the
// file chunk by chunk and wrap around to offset 0 after the last chunk.
// Files are treated as UTF-8 text; invalid bytes come back as U+FFFD.
func (h *Handler) ReadFile(ctx *Context, name string) (*Response, error) {
	sess := ctx.Session

	path, content, err := h.guard(sess).ReadFile(sess.CurrentDirectory(), name)
	if err != nil {
		return sandboxResponse(ctx, err)
	}

	offset, chunk := sess.NextChunk(path, content)
	return NewResponse(OutcomeFileRead, offset, chunk), nil
}
