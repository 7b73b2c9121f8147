// Package users implements the shared registry of sandfs accounts.
//
// A Store maps usernames to credentials and privileges and owns the
// per-user sandbox directories under the session root. The invariant it
// maintains is that a user record exists if and only if
// <session-root>/<username> exists as a directory.
//
// Persistence is delegated to a Backend (file, badger, s3, memory). Every
// mutation is written through to the backend before it becomes visible to
// other connections.
package users

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/metrics"
)

// Store is the concurrent, durable user registry.
//
// Thread safety:
// Reads (Contains, PrivilegeOf, Verify) take the read lock. Register and
// Delete hold the write lock for the whole check, filesystem change and
// persist sequence, so two connections can never both register the same
// name or observe a half-applied deletion.
type Store struct {
	// mu guards records and the sandbox directories under sessionRoot
	mu sync.RWMutex

	// sessionRoot contains one sandbox directory per user
	sessionRoot string

	// backend persists snapshots of records
	backend Backend

	// records is the in-memory view, replaced wholesale by Load
	records map[string]Record

	metrics metrics.UserStoreMetrics
}

// NewStore creates a Store rooted at sessionRoot and persisted through backend.
//
// The store is empty until Load is called.
//
// Panics if backend is nil (programmer error).
func NewStore(sessionRoot string, backend Backend) *Store {
	if backend == nil {
		panic("users: backend cannot be nil")
	}

	return &Store{
		sessionRoot: sessionRoot,
		backend:     backend,
		records:     make(map[string]Record),
		metrics:     metrics.NewNoopUserStoreMetrics(),
	}
}

// SetMetrics installs m as the metrics sink. A nil m restores the no-op sink.
// Must be called before the store is shared between goroutines.
func (s *Store) SetMetrics(m metrics.UserStoreMetrics) {
	if m == nil {
		m = metrics.NewNoopUserStoreMetrics()
	}
	s.metrics = m
}

func (s *Store) observe(operation string, start time.Time, err error) {
	s.metrics.RecordOperation(operation, s.backend.Name(), time.Since(start), err)
}

// Load reads the persisted snapshot and checks the session root.
//
// A missing backing store or session root is a startup failure: the server
// never bootstraps implicitly. Users present in the snapshot whose sandbox
// directory is missing get an empty sandbox recreated, restoring the
// record/directory invariant after an interrupted deletion.
//
// Returns:
//   - nil on success
//   - error matching ErrNotInitialized when nothing was ever persisted
//   - error matching ErrCorrupt when persisted data is inconsistent
//   - wrapped I/O error otherwise
func (s *Store) Load(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() { s.observe("load", start, err) }()

	info, err := os.Stat(s.sessionRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NotInitializedError(s.sessionRoot)
		}
		return fmt.Errorf("stat session root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("session root %s is not a directory", s.sessionRoot)
	}

	snap, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load users from %s backend: %w", s.backend.Name(), err)
	}

	records := snap.Records()
	for name := range records {
		dir := filepath.Join(s.sessionRoot, name)
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			logger.Warn("Sandbox for user %q missing, recreating %s", name, dir)
			if err := os.Mkdir(dir, 0755); err != nil {
				return fmt.Errorf("recreate sandbox for %q: %w", name, err)
			}
		}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	s.metrics.SetRegisteredUsers(len(records))

	logger.Info("Loaded %d user(s) from %s backend", len(records), s.backend.Name())
	return nil
}

// Initialize creates the session root and persists an empty snapshot, so
// that a later Load succeeds.
//
// Returns ErrAlreadyInitialized if the backend already holds a snapshot,
// unless force is set, in which case every user is dropped. Sandboxes left on
// disk by dropped users are cleaned up when their names are registered again.
func (s *Store) Initialize(ctx context.Context, force bool) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() { s.observe("initialize", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.sessionRoot, 0755); err != nil {
		return fmt.Errorf("create session root: %w", err)
	}

	_, err = s.backend.Load(ctx)
	switch {
	case err == nil && !force:
		return &StoreError{
			Code:    ErrCodeAlreadyInitialized,
			Message: fmt.Sprintf("user store already initialized in %s backend (use --force to reset)", s.backend.Name()),
		}
	case err != nil && !errors.Is(err, ErrNotInitialized) && !force:
		return fmt.Errorf("check %s backend: %w", s.backend.Name(), err)
	}

	if err := s.backend.Save(ctx, NewSnapshot()); err != nil {
		return fmt.Errorf("initialize %s backend: %w", s.backend.Name(), err)
	}

	s.records = make(map[string]Record)
	s.metrics.SetRegisteredUsers(0)

	logger.Info("Initialized user store in %s (%s backend)", s.sessionRoot, s.backend.Name())
	return nil
}

// SessionRoot returns the directory holding all sandboxes.
func (s *Store) SessionRoot() string {
	return s.sessionRoot
}

// SandboxRoot returns the sandbox directory of username.
func (s *Store) SandboxRoot(username string) string {
	return filepath.Join(s.sessionRoot, username)
}

// Contains reports whether username is registered.
func (s *Store) Contains(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[username]
	return ok
}

// PrivilegeOf returns the privilege of username, if registered.
func (s *Store) PrivilegeOf(username string) (Privilege, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[username]
	if !ok {
		return "", false
	}
	return rec.Privilege, true
}

// Verify reports whether password matches the stored password of username.
// Unknown users never verify.
func (s *Store) Verify(username, password string) bool {
	s.mu.RLock()
	rec, ok := s.records[username]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rec.Password), []byte(password)) == 1
}

// Usernames returns the registered usernames in sorted order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveOrphan deletes the session root entry name unless it belongs to a
// registered user. Only real directories and deletion tombstones are removed;
// files and symlinks are left alone. It reports whether anything was removed.
//
// The check and the removal happen under the write lock, so a concurrent
// Register of the same name either sees the entry gone or is never undone.
func (s *Store) RemoveOrphan(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return false, fmt.Errorf("invalid session root entry %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[name]; ok {
		return false, nil
	}

	path := filepath.Join(s.sessionRoot, name)
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat orphan %s: %w", path, err)
	}
	if !info.IsDir() && !isTombstone(name) {
		logger.Debug("Skipping non-directory session root entry %s", path)
		return false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("remove orphan %s: %w", path, err)
	}
	return true, nil
}

// isTombstone reports whether name has the ".<user>.deleted-<id>" form
// Delete renames sandboxes to.
func isTombstone(name string) bool {
	i := strings.LastIndex(name, ".deleted-")
	return strings.HasPrefix(name, ".") && i > 1 && i+len(".deleted-") < len(name)
}

// Count returns the number of registered users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Register creates a new user and its empty sandbox.
//
// Checks, in order:
//  1. username already registered: ErrDuplicateUser
//  2. empty field, unusable username or unknown privilege: ErrInvalidFields
//
// The operation is all-or-nothing: if creating the sandbox or persisting the
// snapshot fails, both the in-memory record and the directory are rolled back
// and a wrapped I/O error is returned.
//
// Thread safety:
// Holds the write lock for the entire sequence.
func (s *Store) Register(ctx context.Context, username, password, privilege string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() { s.observe("register", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	// ========================================================================
	// Step 1: Validate
	// ========================================================================

	if _, exists := s.records[username]; exists {
		return newError(ErrCodeDuplicateUser, "user already exists", username)
	}

	if username == "" || password == "" || privilege == "" {
		return newError(ErrCodeInvalidFields, "username, password and privilege are required", username)
	}
	if err := ValidateUsername(username); err != nil {
		return newError(ErrCodeInvalidFields, err.Error(), username)
	}
	priv, err := ParsePrivilege(privilege)
	if err != nil {
		return newError(ErrCodeInvalidFields, err.Error(), username)
	}

	// ========================================================================
	// Step 2: Create sandbox
	// ========================================================================

	dir := filepath.Join(s.sessionRoot, username)

	// A leftover directory without a record can only come from an interrupted
	// deletion; the name is free, so start from an empty sandbox. Anything
	// else under that name is not ours to remove.
	if info, err := os.Lstat(dir); err == nil {
		if !info.IsDir() {
			return newError(ErrCodeDuplicateUser, "session root entry exists and is not a sandbox", username)
		}
		logger.Warn("Removing stale sandbox %s before registering %q", dir, username)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove stale sandbox for %q: %w", username, err)
		}
	}

	if err := os.Mkdir(dir, 0755); err != nil {
		return fmt.Errorf("create sandbox for %q: %w", username, err)
	}

	// ========================================================================
	// Step 3: Persist
	// ========================================================================

	s.records[username] = Record{Username: username, Password: password, Privilege: priv}

	if err := s.backend.Save(ctx, snapshotOf(s.records)); err != nil {
		delete(s.records, username)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Error("Rollback of sandbox %s failed: %v", dir, rmErr)
		}
		return fmt.Errorf("persist registration of %q: %w", username, err)
	}

	s.metrics.SetRegisteredUsers(len(s.records))
	logger.Info("Registered user %q (privilege=%s)", username, priv)
	return nil
}

// Delete removes target and its sandbox on behalf of requester.
//
// Checks, in order:
//  1. requester is not an admin: ErrAdminRequired
//  2. target is not registered: ErrUserNotFound
//  3. requesterPassword does not match the requester: ErrWrongPassword
//
// The sandbox is first moved aside to a hidden tombstone in the session root,
// then the snapshot without target is persisted. If persisting fails the
// tombstone is moved back and the record restored. The tombstone is removed
// last; a failure there is only logged since the user is already gone.
//
// Returns selfDeleted = true when target == requester, so the caller can
// de-authenticate the requesting session.
//
// Thread safety:
// Holds the write lock for the entire sequence.
func (s *Store) Delete(ctx context.Context, requester, requesterPassword, target string) (selfDeleted bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	// ========================================================================
	// Step 1: Authorize
	// ========================================================================

	req, ok := s.records[requester]
	if !ok || req.Privilege != PrivilegeAdmin {
		return false, newError(ErrCodeAdminRequired, "admin privilege required", requester)
	}

	rec, ok := s.records[target]
	if !ok {
		return false, newError(ErrCodeUserNotFound, "user not found", target)
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(requesterPassword)) != 1 {
		return false, newError(ErrCodeWrongPassword, "wrong password", requester)
	}

	// ========================================================================
	// Step 2: Move sandbox aside
	// ========================================================================

	dir := filepath.Join(s.sessionRoot, target)
	tombstone := filepath.Join(s.sessionRoot, fmt.Sprintf(".%s.deleted-%s", target, uuid.NewString()))

	movedAside := true
	if err := os.Rename(dir, tombstone); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("move sandbox of %q aside: %w", target, err)
		}
		movedAside = false
	}

	// ========================================================================
	// Step 3: Persist
	// ========================================================================

	delete(s.records, target)

	if err := s.backend.Save(ctx, snapshotOf(s.records)); err != nil {
		s.records[target] = rec
		if movedAside {
			if mvErr := os.Rename(tombstone, dir); mvErr != nil {
				logger.Error("Rollback of sandbox %s failed: %v", dir, mvErr)
			}
		}
		return false, fmt.Errorf("persist deletion of %q: %w", target, err)
	}

	// ========================================================================
	// Step 4: Remove sandbox
	// ========================================================================

	if movedAside {
		if err := os.RemoveAll(tombstone); err != nil {
			logger.Warn("Failed to remove sandbox tombstone %s: %v", tombstone, err)
		}
	}

	s.metrics.SetRegisteredUsers(len(s.records))
	logger.Info("User %q deleted by %q", target, requester)
	return target == requester, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
