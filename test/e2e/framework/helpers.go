package framework

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestContext holds the context for a test run
type TestContext struct {
	T      *testing.T
	Server *TestServer
}

// NewTestContext creates a running server backed by backend
func NewTestContext(t *testing.T, backend BackendType) *TestContext {
	t.Helper()
	return NewTestContextWithConfig(t, TestServerConfig{Backend: backend})
}

// NewTestContextWithConfig creates a running server with a custom configuration
func NewTestContextWithConfig(t *testing.T, config TestServerConfig) *TestContext {
	t.Helper()

	ctx := &TestContext{T: t}

	// Register cleanup immediately so it's available if anything fails
	t.Cleanup(func() {
		ctx.Cleanup()
	})

	server := NewTestServer(t, config)
	ctx.Server = server

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	return ctx
}

// Cleanup stops the server
func (tc *TestContext) Cleanup() {
	tc.T.Helper()
	if tc.Server != nil {
		_ = tc.Server.Stop()
	}
}

// Connect opens a new client connection
func (tc *TestContext) Connect() *Client {
	tc.T.Helper()
	return Dial(tc.T, tc.Server.Port())
}

// ConnectAdmin opens a client connection logged in as the administrator
func (tc *TestContext) ConnectAdmin() *Client {
	tc.T.Helper()
	c := tc.Connect()
	c.Login(tc.Server.Admin())
	return c
}

// SandboxPath returns the on-disk path of relativePath in user's sandbox
func (tc *TestContext) SandboxPath(user, relativePath string) string {
	return filepath.Join(tc.Server.SessionRoot(), user, relativePath)
}

// AssertSandboxExists fails the test if user has no sandbox directory
func (tc *TestContext) AssertSandboxExists(user string) {
	tc.T.Helper()
	info, err := os.Stat(tc.SandboxPath(user, ""))
	if err != nil {
		tc.T.Fatalf("Sandbox of %s does not exist: %v", user, err)
	}
	if !info.IsDir() {
		tc.T.Fatalf("Sandbox of %s is not a directory", user)
	}
}

// AssertSandboxGone fails the test if user still has a sandbox directory
func (tc *TestContext) AssertSandboxGone(user string) {
	tc.T.Helper()
	if _, err := os.Stat(tc.SandboxPath(user, "")); !os.IsNotExist(err) {
		tc.T.Fatalf("Sandbox of %s still exists (err=%v)", user, err)
	}
}

// AssertFileContent fails the test if the file in user's sandbox does not hold want
func (tc *TestContext) AssertFileContent(user, relativePath, want string) {
	tc.T.Helper()
	got, err := os.ReadFile(tc.SandboxPath(user, relativePath))
	if err != nil {
		tc.T.Fatalf("Failed to read %s: %v", relativePath, err)
	}
	if string(got) != want {
		tc.T.Errorf("Content of %s = %q, want %q", relativePath, got, want)
	}
}

// Listing renders the expected list response for names
func Listing(names ...string) string {
	return strings.Join(names, "\n")
}
