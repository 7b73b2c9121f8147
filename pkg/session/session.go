// Package session holds the per-connection state of a sandfs client.
package session

// DefaultChunkSize is the number of characters returned by one read_file.
const DefaultChunkSize = 100

// Session is the state of one client connection: who is logged in, where
// they are in their sandbox and how far each file has been read.
//
// A Session is owned by the goroutine serving its connection and is not safe
// for concurrent use.
type Session struct {
	identity      string
	authenticated bool

	// currentDirectory is relative to the canonical sandbox root, "" for root
	currentDirectory string

	// cursors maps an absolute file path to the next chunk index
	cursors map[string]int

	chunkSize int
}

// New creates an anonymous session reading files in chunks of chunkSize
// characters (DefaultChunkSize when chunkSize <= 0).
func New(chunkSize int) *Session {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Session{
		cursors:   make(map[string]int),
		chunkSize: chunkSize,
	}
}

// Identity returns the logged in username, "" when anonymous.
func (s *Session) Identity() string { return s.identity }

// Authenticated reports whether a user is logged in.
func (s *Session) Authenticated() bool { return s.authenticated }

// CurrentDirectory returns the current directory relative to the sandbox root.
func (s *Session) CurrentDirectory() string { return s.currentDirectory }

// SetCurrentDirectory records a directory already validated by the sandbox.
func (s *Session) SetCurrentDirectory(dir string) { s.currentDirectory = dir }

// ChunkSize returns the read chunk size in characters.
func (s *Session) ChunkSize() int { return s.chunkSize }

// Login authenticates the session as username, starting at the sandbox root
// with no read cursors.
func (s *Session) Login(username string) {
	s.identity = username
	s.authenticated = true
	s.currentDirectory = ""
	clear(s.cursors)
}

// Reset returns the session to the anonymous state.
func (s *Session) Reset() {
	s.identity = ""
	s.authenticated = false
	s.currentDirectory = ""
	clear(s.cursors)
}

// NextChunk returns the chunk of content at the cursor of path together with
// its starting character offset, then advances the cursor.
//
// Characters are Unicode code points. Content is decoded as UTF-8: each byte
// of an invalid sequence counts as one character and is returned as U+FFFD,
// so chunks of a non-UTF-8 file are not byte-exact. For content of L
// characters the cursor
// cycles through ceil(L/chunkSize) positions; for empty content it stays at 0
// and the chunk is empty. A start past the end yields an empty chunk.
func (s *Session) NextChunk(path, content string) (offset int, chunk string) {
	runes := []rune(content)
	cursor := s.cursors[path]

	chunks := (len(runes) + s.chunkSize - 1) / s.chunkSize

	// A cursor past the end (the file shrank) yields an empty chunk once and
	// then wraps.
	start := cursor * s.chunkSize
	end := min(start+s.chunkSize, len(runes))
	if start < end {
		chunk = string(runes[start:end])
	}

	if chunks > 0 {
		s.cursors[path] = (cursor + 1) % chunks
	} else {
		s.cursors[path] = 0
	}
	return start, chunk
}

// Cursor returns the next chunk index recorded for path.
func (s *Session) Cursor(path string) int {
	return s.cursors[path]
}
