package testing

import (
	"context"
	"testing"

	"github.com/marmos91/sandfs/pkg/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BackendTestSuite is a reusable test suite for users.Backend implementations.
// It tests the interface contract, not implementation details, so the same
// suite runs against the memory, file, badger and S3 backends.
//
// Usage:
//
//	func TestMyBackend(t *testing.T) {
//	    suite := &testing.BackendTestSuite{
//	        NewBackend: func(t *testing.T) users.Backend {
//	            return mybackend.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend creates a fresh, never-saved backend for each test.
	NewBackend func(t *testing.T) users.Backend
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(test *testing.T) {
	test.Run("LoadNotInitialized", suite.TestLoadNotInitialized)
	test.Run("SaveEmpty", suite.TestSaveEmpty)
	test.Run("RoundTrip", suite.TestRoundTrip)
	test.Run("SaveReplaces", suite.TestSaveReplaces)
	test.Run("CancelledContext", suite.TestCancelledContext)
}

func (suite *BackendTestSuite) newBackend(test *testing.T) users.Backend {
	backend := suite.NewBackend(test)
	test.Cleanup(func() { _ = backend.Close() })
	return backend
}

// TestLoadNotInitialized verifies a never-saved backend reports ErrNotInitialized.
func (suite *BackendTestSuite) TestLoadNotInitialized(test *testing.T) {
	backend := suite.newBackend(test)

	_, err := backend.Load(context.Background())

	require.Error(test, err)
	assert.ErrorIs(test, err, users.ErrNotInitialized)
}

// TestSaveEmpty verifies an empty snapshot initializes the backend.
func (suite *BackendTestSuite) TestSaveEmpty(test *testing.T) {
	backend := suite.newBackend(test)
	ctx := context.Background()

	require.NoError(test, backend.Save(ctx, users.NewSnapshot()))

	snap, err := backend.Load(ctx)
	require.NoError(test, err)
	assert.NotNil(test, snap.Passwords)
	assert.NotNil(test, snap.Privileges)
	assert.Empty(test, snap.Passwords)
	assert.Empty(test, snap.Privileges)
}

// TestRoundTrip verifies saved users come back unchanged.
func (suite *BackendTestSuite) TestRoundTrip(test *testing.T) {
	backend := suite.newBackend(test)
	ctx := context.Background()

	snap := SampleSnapshot()
	require.NoError(test, backend.Save(ctx, snap))

	loaded, err := backend.Load(ctx)
	require.NoError(test, err)
	assert.Equal(test, snap.Passwords, loaded.Passwords)
	assert.Equal(test, snap.Privileges, loaded.Privileges)
}

// TestSaveReplaces verifies users missing from a later snapshot are gone.
func (suite *BackendTestSuite) TestSaveReplaces(test *testing.T) {
	backend := suite.newBackend(test)
	ctx := context.Background()

	require.NoError(test, backend.Save(ctx, SampleSnapshot()))

	next := users.NewSnapshot()
	next.Passwords["carol"] = "c4rol"
	next.Privileges["carol"] = users.PrivilegeStandard
	require.NoError(test, backend.Save(ctx, next))

	loaded, err := backend.Load(ctx)
	require.NoError(test, err)
	assert.Equal(test, map[string]string{"carol": "c4rol"}, loaded.Passwords)
	assert.Equal(test, map[string]users.Privilege{"carol": users.PrivilegeStandard}, loaded.Privileges)
}

// TestCancelledContext verifies backends honor a cancelled context on Save.
func (suite *BackendTestSuite) TestCancelledContext(test *testing.T) {
	backend := suite.newBackend(test)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(test, backend.Save(ctx, SampleSnapshot()))
}

// SampleSnapshot returns a small snapshot with one admin and one standard user.
func SampleSnapshot() *users.Snapshot {
	snap := users.NewSnapshot()
	snap.Passwords["alice"] = "s3cret"
	snap.Privileges["alice"] = users.PrivilegeAdmin
	snap.Passwords["bob"] = "hunter2"
	snap.Privileges["bob"] = users.PrivilegeStandard
	return snap
}
