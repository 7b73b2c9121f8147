// Package sandbox confines a session to its user's directory tree.
//
// A Guard answers one question for every path a client names: does it
// resolve to a directory that a walk of the sandbox root would visit? The
// check is done on canonical paths (symlinks evaluated), so neither ".."
// components nor symbolic links pointing outside the tree can escape.
//
// The guard is stateless. The caller owns the session's current directory,
// passes it in, and stores what ChangeFolder returns. Current directories are
// always relative to the canonical sandbox root, "" meaning the root itself.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/marmos91/sandfs/internal/logger"
)

// Guard validates and performs filesystem operations inside one sandbox root.
type Guard struct {
	root string
}

// New returns a Guard for the sandbox rooted at root.
func New(root string) *Guard {
	return &Guard{root: root}
}

// ChangeFolder resolves dir relative to cwd and returns the new current
// directory.
//
// Returns ErrIncorrectDirectory when dir does not resolve to a directory
// inside the sandbox, and ErrDirectoryGone when cwd itself has vanished.
func (g *Guard) ChangeFolder(cwd, dir string) (string, error) {
	root, _, err := g.enter(cwd)
	if err != nil {
		return "", err
	}

	candidate, ok, err := g.resolve(root, cwd, dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(ErrIncorrectDirectory, dir)
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", candidate, err)
	}
	if rel == "." {
		rel = ""
	}
	return rel, nil
}

// List returns the names of all entries of the current directory, sorted.
func (g *Guard) List(cwd string) ([]string, error) {
	_, dir, err := g.enter(cwd)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Files returns the names of the regular files directly inside the current
// directory, sorted. Symbolic links are not regular files.
func (g *Guard) Files(cwd string) ([]string, error) {
	_, dir, err := g.enter(cwd)
	if err != nil {
		return nil, err
	}
	return regularFiles(dir)
}

// CreateFolder creates the subdirectory name in the current directory.
//
// Returns ErrInvalidName when name is not a single path component,
// ErrDirectoryExists when the subdirectory is already there, and ErrIsFile
// when another kind of entry holds the name.
func (g *Guard) CreateFolder(cwd, name string) error {
	_, dir, err := g.enter(cwd)
	if err != nil {
		return err
	}

	if !validName(name) {
		return newError(ErrInvalidName, name)
	}

	target := filepath.Join(dir, name)
	info, err := os.Lstat(target)
	switch {
	case err == nil && info.IsDir():
		return newError(ErrDirectoryExists, name)
	case err == nil:
		return newError(ErrIsFile, name)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if err := os.Mkdir(target, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return newError(ErrDirectoryExists, name)
		}
		return fmt.Errorf("create folder %s: %w", target, err)
	}
	return nil
}

// ReadFile returns the absolute path and whole content of the regular file
// name in the current directory.
//
// Returns ErrFileNotFound when name is not one of Files(cwd).
func (g *Guard) ReadFile(cwd, name string) (path string, content string, err error) {
	_, dir, err := g.enter(cwd)
	if err != nil {
		return "", "", err
	}

	files, err := regularFiles(dir)
	if err != nil {
		return "", "", err
	}
	if !slices.Contains(files, name) {
		return "", "", newError(ErrFileNotFound, name)
	}

	path = filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", newError(ErrFileNotFound, name)
		}
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return path, string(data), nil
}

// WriteFile writes data to the file name in the current directory.
//
// An absent file is created holding data verbatim (created = true); an
// existing regular file gets "\n" + data appended.
//
// Returns ErrInvalidName when name is not a single path component or names
// something other than a regular file or directory (e.g. a symlink), and
// ErrIsDirectory when a directory holds the name.
func (g *Guard) WriteFile(cwd, name, data string) (created bool, err error) {
	_, dir, err := g.enter(cwd)
	if err != nil {
		return false, err
	}

	if !validName(name) {
		return false, newError(ErrInvalidName, name)
	}

	target := filepath.Join(dir, name)
	info, err := os.Lstat(target)
	switch {
	case err == nil && info.IsDir():
		return false, newError(ErrIsDirectory, name)
	case err == nil && !info.Mode().IsRegular():
		return false, newError(ErrInvalidName, name)
	case err == nil:
		return false, appendFile(target, data)
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with another session of the same user.
			return false, appendFile(target, data)
		}
		return false, fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := f.WriteString(data); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", target, err)
	}
	return true, nil
}

// enter canonicalizes the sandbox root and checks that cwd is still one of
// its directories. It returns the canonical root and the canonical path of
// cwd.
func (g *Guard) enter(cwd string) (root string, dir string, err error) {
	root, err = g.canonicalRoot()
	if err != nil {
		return "", "", err
	}

	dir, ok, err := g.resolve(root, cwd, "")
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", newError(ErrDirectoryGone, cwd)
	}
	return root, dir, nil
}

func (g *Guard) canonicalRoot() (string, error) {
	abs, err := filepath.Abs(g.root)
	if err != nil {
		return "", fmt.Errorf("absolute path of %s: %w", g.root, err)
	}

	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(ErrDirectoryGone, "")
		}
		return "", fmt.Errorf("resolve sandbox root %s: %w", abs, err)
	}
	return root, nil
}

// resolve evaluates root/cwd/p and reports whether the result is a directory
// visited by a walk of root.
//
// An absolute p is taken as is rather than re-rooted under cwd. Any failure to
// evaluate the candidate (missing component, symlink loop, component that is
// not a directory) means the path is simply not allowed.
func (g *Guard) resolve(root, cwd, p string) (string, bool, error) {
	target := filepath.Join(root, cwd, p)
	if filepath.IsAbs(p) {
		target = p
	}

	candidate, err := filepath.EvalSymlinks(target)
	if err != nil {
		logger.Debug("Sandbox: %q from %q does not resolve: %v", p, cwd, err)
		return "", false, nil
	}

	ok, err := walkedDirectory(root, candidate)
	if err != nil {
		return "", false, err
	}
	if !ok {
		logger.Debug("Sandbox: rejected %s (outside %s)", candidate, root)
	}
	return candidate, ok, nil
}

// walkedDirectory reports whether candidate is among the directories found by
// filepath.WalkDir(root). The walk does not follow symlinks and root is
// canonical, so every visited path is already canonical and can be compared
// directly. Subtrees that cannot contain candidate are skipped.
func walkedDirectory(root, candidate string) (bool, error) {
	found := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtree: not visited, so not allowed.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path == candidate {
			found = true
			return fs.SkipAll
		}
		if !isAncestor(path, candidate) {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, newError(ErrDirectoryGone, "")
		}
		return false, fmt.Errorf("walk %s: %w", root, err)
	}
	return found, nil
}

// isAncestor reports whether dir is a strict ancestor of path.
func isAncestor(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func appendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString("\n" + data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// validName reports whether name is a single path component that can be
// created inside a directory.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
