package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSandbox builds:
//
//	root/
//	  docs/
//	    nested/
//	  notes.txt
//	  escape -> <outside>
//	  loop   -> docs
func newSandbox(t *testing.T) (*Guard, string, string) {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "alice")
	outside := filepath.Join(base, "bob")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "nested"), 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "docs"), filepath.Join(root, "loop")))

	return New(root), root, outside
}

func TestChangeFolder(t *testing.T) {
	g, _, _ := newSandbox(t)

	tests := []struct {
		name string
		cwd  string
		dir  string
		want string
		err  error
	}{
		{name: "subdirectory", cwd: "", dir: "docs", want: "docs"},
		{name: "nested", cwd: "docs", dir: "nested", want: filepath.Join("docs", "nested")},
		{name: "multi component", cwd: "", dir: "docs/nested", want: filepath.Join("docs", "nested")},
		{name: "parent", cwd: filepath.Join("docs", "nested"), dir: "..", want: "docs"},
		{name: "back to root", cwd: "docs", dir: "..", want: ""},
		{name: "dot", cwd: "docs", dir: ".", want: "docs"},
		{name: "in-sandbox symlink", cwd: "", dir: "loop", want: "docs"},
		{name: "parent of root", cwd: "", dir: "..", err: ErrIncorrectDirectory},
		{name: "sibling sandbox", cwd: "", dir: "../bob", err: ErrIncorrectDirectory},
		{name: "escaping symlink", cwd: "", dir: "escape", err: ErrIncorrectDirectory},
		{name: "file", cwd: "", dir: "notes.txt", err: ErrIncorrectDirectory},
		{name: "missing", cwd: "", dir: "ghost", err: ErrIncorrectDirectory},
		{name: "deep escape", cwd: "docs", dir: "../../bob", err: ErrIncorrectDirectory},
		{name: "absolute outside", cwd: "", dir: "/", err: ErrIncorrectDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.ChangeFolder(tt.cwd, tt.dir)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangeFolder_SymlinkedRoot(t *testing.T) {
	_, root, _ := newSandbox(t)

	link := filepath.Join(t.TempDir(), "alias")
	require.NoError(t, os.Symlink(root, link))

	aliased := New(link)
	got, err := aliased.ChangeFolder("", "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", got)

	_, err = aliased.ChangeFolder("", "../bob")
	assert.ErrorIs(t, err, ErrIncorrectDirectory)

	got, err = aliased.ChangeFolder("", filepath.Join(root, "docs", "nested"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("docs", "nested"), got)
}

func TestList(t *testing.T) {
	g, _, _ := newSandbox(t)

	names, err := g.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "escape", "loop", "notes.txt"}, names)

	names, err = g.List(filepath.Join("docs", "nested"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFiles(t *testing.T) {
	g, root, _ := newSandbox(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "notes.txt"), filepath.Join(root, "link.txt")))

	files, err := g.Files("")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, files)
}

func TestVanishedDirectory(t *testing.T) {
	g, root, _ := newSandbox(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "docs")))

	_, err := g.List("docs")
	assert.ErrorIs(t, err, ErrDirectoryGone)

	_, err = g.ChangeFolder("docs", "..")
	assert.ErrorIs(t, err, ErrDirectoryGone)

	_, err = g.WriteFile("docs", "a.txt", "x")
	assert.ErrorIs(t, err, ErrDirectoryGone)
}

func TestVanishedRoot(t *testing.T) {
	g, root, _ := newSandbox(t)
	require.NoError(t, os.RemoveAll(root))

	_, err := g.List("")
	assert.ErrorIs(t, err, ErrDirectoryGone)
}

func TestCreateFolder(t *testing.T) {
	g, root, _ := newSandbox(t)

	require.NoError(t, g.CreateFolder("", "photos"))
	info, err := os.Stat(filepath.Join(root, "photos"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, g.CreateFolder("docs", "deeper"))
	_, err = os.Stat(filepath.Join(root, "docs", "deeper"))
	assert.NoError(t, err)

	tests := []struct {
		name string
		arg  string
		err  error
	}{
		{"existing", "photos", ErrDirectoryExists},
		{"file", "notes.txt", ErrIsFile},
		{"symlink", "escape", ErrIsFile},
		{"traversal", "..", ErrInvalidName},
		{"separator", "a/b", ErrInvalidName},
		{"empty", "", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, g.CreateFolder("", tt.arg), tt.err)
		})
	}
}

func TestReadFile(t *testing.T) {
	g, root, _ := newSandbox(t)

	path, content, err := g.ReadFile("", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, "notes.txt", filepath.Base(path))

	canonical, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(canonical, "notes.txt"), path)

	for _, name := range []string{"missing.txt", "docs", "escape", "../bob/secret.txt", "escape/secret.txt"} {
		_, _, err := g.ReadFile("", name)
		assert.ErrorIs(t, err, ErrFileNotFound, name)
	}
}

func TestWriteFile(t *testing.T) {
	g, root, outside := newSandbox(t)

	created, err := g.WriteFile("", "log.txt", "first line")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = g.WriteFile("", "log.txt", "second line")
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(filepath.Join(root, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", string(data))

	created, err = g.WriteFile("docs", "inner.txt", "")
	require.NoError(t, err)
	assert.True(t, created)

	_, err = g.WriteFile("", "docs", "x")
	assert.ErrorIs(t, err, ErrIsDirectory)

	_, err = g.WriteFile("", "../escape.txt", "x")
	assert.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "trap.txt")))
	_, err = g.WriteFile("", "trap.txt", "x")
	assert.ErrorIs(t, err, ErrInvalidName)

	secret, err := os.ReadFile(filepath.Join(outside, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nope", string(secret))
}
