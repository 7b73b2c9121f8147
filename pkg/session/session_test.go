package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoginAndReset(t *testing.T) {
	s := New(0)
	assert.False(t, s.Authenticated())
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())

	s.Login("alice")
	s.SetCurrentDirectory("docs")
	s.NextChunk("/a", "abc")

	assert.True(t, s.Authenticated())
	assert.Equal(t, "alice", s.Identity())
	assert.Equal(t, "docs", s.CurrentDirectory())

	s.Login("bob")
	assert.Equal(t, "", s.CurrentDirectory(), "login starts at the root")
	assert.Equal(t, 0, s.Cursor("/a"), "login clears cursors")

	s.Reset()
	assert.False(t, s.Authenticated())
	assert.Equal(t, "", s.Identity())
}

func TestNextChunk_CyclesThroughChunks(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		offsets []int
	}{
		{"shorter than a chunk", 21, []int{0, 0, 0}},
		{"exact multiple", 300, []int{0, 100, 200, 0, 100}},
		{"partial last chunk", 250, []int{0, 100, 200, 0}},
		{"one chunk", 100, []int{0, 0}},
		{"empty", 0, []int{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(100)
			content := strings.Repeat("x", tt.length)

			var got []int
			for range tt.offsets {
				offset, _ := s.NextChunk("/f", content)
				got = append(got, offset)
			}
			assert.Equal(t, tt.offsets, got)
		})
	}
}

func TestNextChunk_Slices(t *testing.T) {
	s := New(100)
	content := strings.Repeat("a", 100) + strings.Repeat("b", 50)

	offset, chunk := s.NextChunk("/f", content)
	assert.Equal(t, 0, offset)
	assert.Equal(t, strings.Repeat("a", 100), chunk)

	offset, chunk = s.NextChunk("/f", content)
	assert.Equal(t, 100, offset)
	assert.Equal(t, strings.Repeat("b", 50), chunk)

	_, chunk = s.NextChunk("/f", "")
	assert.Empty(t, chunk)
	assert.Equal(t, 0, s.Cursor("/f"))
}

func TestNextChunk_CountsCodePoints(t *testing.T) {
	s := New(3)
	content := "héllo wörld"

	_, first := s.NextChunk("/f", content)
	_, second := s.NextChunk("/f", content)

	assert.Equal(t, "hél", first)
	assert.Equal(t, "lo ", second)
}

func TestNextChunk_InvalidUTF8BecomesReplacementChar(t *testing.T) {
	s := New(2)

	offset, chunk := s.NextChunk("/bin", "a\xff\xfeb")
	assert.Equal(t, 0, offset)
	assert.Equal(t, "a\uFFFD", chunk)

	offset, chunk = s.NextChunk("/bin", "a\xff\xfeb")
	assert.Equal(t, 2, offset)
	assert.Equal(t, "\uFFFDb", chunk)
}

func TestNextChunk_IndependentCursors(t *testing.T) {
	s := New(2)

	s.NextChunk("/a", "aaaa")
	offset, _ := s.NextChunk("/b", "bbbb")
	assert.Equal(t, 0, offset)

	offset, _ = s.NextChunk("/a", "aaaa")
	assert.Equal(t, 2, offset)
}

func TestNextChunk_FileShrank(t *testing.T) {
	s := New(10)
	long := strings.Repeat("x", 50)
	for i := 0; i < 3; i++ {
		s.NextChunk("/f", long)
	}

	offset, chunk := s.NextChunk("/f", "short")
	assert.Equal(t, 30, offset)
	assert.Empty(t, chunk)

	offset, chunk = s.NextChunk("/f", "short")
	assert.Equal(t, 0, offset)
	assert.Equal(t, "short", chunk)
}
