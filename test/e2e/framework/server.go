package framework

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/adapter/line"
	"github.com/marmos91/sandfs/pkg/config"
	"github.com/marmos91/sandfs/pkg/server"
	"github.com/marmos91/sandfs/pkg/users"
)

// BackendType represents the user store backend to run the server with
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendBadger BackendType = "badger"
)

// AllBackends lists the backends that need no external service.
var AllBackends = []BackendType{BackendMemory, BackendFile, BackendBadger}

// TestServerConfig holds configuration for the test server.
// This is distinct from pkg/config.ServerConfig (application-level server settings).
type TestServerConfig struct {
	Port           int
	Backend        BackendType
	MaxConnections int
	MaxLineLength  int
	ChunkSize      int
	AdminUser      string
	AdminPassword  string
	LogLevel       string
	StartupTimeout time.Duration
}

// TestServer wraps a SandFS server for testing
type TestServer struct {
	t       testing.TB
	config  TestServerConfig
	server  *server.SandServer
	line    *line.LineAdapter
	store   *users.Store
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
	tempDir string // Temporary directory holding the session root and registry
}

// NewTestServer creates a new test server instance
func NewTestServer(t testing.TB, config TestServerConfig) *TestServer {
	t.Helper()

	if config.Port == 0 {
		config.Port = findFreePort(t)
	}
	if config.Backend == "" {
		config.Backend = BackendMemory
	}
	if config.AdminUser == "" {
		config.AdminUser = "admin"
	}
	if config.AdminPassword == "" {
		config.AdminPassword = "secret"
	}
	if config.LogLevel == "" {
		config.LogLevel = "ERROR" // Keep tests quiet by default
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = 10 * time.Second
	}

	tempDir, err := os.MkdirTemp("", "sandfs-e2e-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TestServer{
		t:       t,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		tempDir: tempDir,
	}
}

// serverConfig builds the application configuration the test server runs with.
func (ts *TestServer) serverConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = ts.config.LogLevel
	cfg.Server.SessionRoot = filepath.Join(ts.tempDir, "session")

	cfg.Users.Backend = string(ts.config.Backend)
	cfg.Users.File["path"] = filepath.Join(ts.tempDir, "users.json")
	cfg.Users.Badger["db_path"] = filepath.Join(ts.tempDir, "users.db")

	cfg.Adapters.Line.Port = ts.config.Port
	cfg.Adapters.Line.MaxConnections = ts.config.MaxConnections
	if ts.config.MaxLineLength > 0 {
		cfg.Adapters.Line.MaxLineLength = ts.config.MaxLineLength
	}
	if ts.config.ChunkSize > 0 {
		cfg.Sandbox.ChunkSize = ts.config.ChunkSize
	}
	return cfg
}

// Start initializes the user store, registers the administrator and starts
// the server in the background.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return fmt.Errorf("server already started")
	}

	ts.t.Helper()

	logger.SetLevel(ts.config.LogLevel)

	cfg := ts.serverConfig()
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid test configuration: %w", err)
	}

	store, err := config.CreateUserStore(ts.ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create user store: %w", err)
	}
	if err := store.Initialize(ts.ctx, false); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to initialize user store: %w", err)
	}
	if err := store.Register(ts.ctx, ts.config.AdminUser, ts.config.AdminPassword, string(users.PrivilegeAdmin)); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to register administrator: %w", err)
	}
	ts.store = store
	ts.t.Logf("Using %s user store", ts.config.Backend)

	adapters, err := config.CreateAdapters(cfg, nil) // nil = no metrics for tests
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create adapters: %w", err)
	}

	ts.server = server.New(store, cfg.Server.ShutdownTimeout)
	for _, a := range adapters {
		if la, ok := a.(*line.LineAdapter); ok {
			ts.line = la
		}
		if err := ts.server.AddAdapter(a); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	ts.wg.Add(1)
	go func() {
		defer ts.wg.Done()
		if err := ts.server.Serve(ts.ctx); err != nil && err != context.Canceled {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.t.Logf("Waiting for server to start on port %d...", ts.config.Port)
	if err := ts.waitForServer(); err != nil {
		ts.cancel()
		ts.wg.Wait()
		return fmt.Errorf("server failed to start: %w", err)
	}

	ts.started = true
	ts.t.Logf("Server started successfully on port %d", ts.config.Port)
	return nil
}

// Stop stops the test server and cleans up resources
func (ts *TestServer) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		_ = os.RemoveAll(ts.tempDir)
		return nil
	}

	ts.t.Helper()
	ts.t.Logf("Stopping server...")

	ts.cancel()

	done := make(chan struct{})
	go func() {
		ts.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ts.t.Logf("Server stopped gracefully")
	case <-time.After(5 * time.Second):
		ts.t.Logf("Server stop timeout - forcing shutdown")
	}

	if ts.tempDir != "" {
		if err := os.RemoveAll(ts.tempDir); err != nil {
			ts.t.Logf("Warning: failed to remove temp directory %s: %v", ts.tempDir, err)
		}
	}

	ts.started = false
	return nil
}

// Port returns the port the server is listening on
func (ts *TestServer) Port() int {
	return ts.config.Port
}

// Admin returns the administrator credentials registered at startup
func (ts *TestServer) Admin() (string, string) {
	return ts.config.AdminUser, ts.config.AdminPassword
}

// Store returns the user store the server runs with
func (ts *TestServer) Store() *users.Store {
	return ts.store
}

// SessionRoot returns the directory holding every sandbox
func (ts *TestServer) SessionRoot() string {
	return filepath.Join(ts.tempDir, "session")
}

// waitForServer waits for the server to be ready by attempting to connect
func (ts *TestServer) waitForServer() error {
	deadline := time.Now().Add(ts.config.StartupTimeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", ts.config.Port), 500*time.Millisecond)
		if err == nil {
			// Quit and drain so the readiness check is known to have been served
			_ = conn.SetDeadline(deadline)
			_, _ = io.WriteString(conn, "quit\n")
			_, _ = io.Copy(io.Discard, conn)
			_ = conn.Close()
			ts.t.Logf("Server is accepting connections on port %d", ts.config.Port)
			return ts.waitForIdle(deadline)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for server to start")
}

// waitForIdle waits until the readiness connection has been released, so tests
// with a connection limit start from zero.
func (ts *TestServer) waitForIdle(deadline time.Time) error {
	if ts.line == nil {
		return nil
	}
	for time.Now().Before(deadline) {
		if ts.line.GetActiveConnections() == 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for readiness connection to close")
}

// findFreePort finds an available port
func findFreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}
