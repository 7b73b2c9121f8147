package line

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/pkg/users"
	"github.com/marmos91/sandfs/pkg/users/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	adapter *LineAdapter
	store   *users.Store
	root    string
	addr    string
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func startServer(t *testing.T, config LineConfig) *testServer {
	t.Helper()

	root := t.TempDir()
	store := users.NewStore(root, memory.NewInitialized())
	require.NoError(t, store.Load(context.Background()))

	adapter := New(config, nil)
	adapter.SetStore(store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := &testServer{
		adapter: adapter,
		store:   store,
		root:    root,
		addr:    ln.Addr().String(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		srv.err = adapter.ServeListener(ctx, ln)
		close(srv.done)
	}()

	readyCtx, readyCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readyCancel()
	require.NoError(t, adapter.WaitReady(readyCtx))

	t.Cleanup(func() {
		cancel()
		select {
		case <-srv.done:
		case <-time.After(5 * time.Second):
		}
	})
	return srv
}

func (s *testServer) dial(t *testing.T) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *testServer) stop(t *testing.T) error {
	t.Helper()
	s.cancel()
	select {
	case <-s.done:
		return s.err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
		return nil
	}
}

// send writes line and reads back exactly len(want) bytes.
func send(t *testing.T, conn net.Conn, line, want string) {
	t.Helper()
	_, err := conn.Write([]byte(line))
	require.NoError(t, err)
	expect(t, conn, want)
}

func expect(t *testing.T, conn net.Conn, want string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, 0, len(want))
	tmp := make([]byte, 4096)
	for len(buf) < len(want) {
		n, err := conn.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	assert.Equal(t, want, string(buf))
}

// expectClosed asserts the server closed conn without sending anything more.
func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	n, err := conn.Read(make([]byte, 64))
	assert.Zero(t, n)
	require.Error(t, err)

	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection still open")
	}
}

func TestEndToEnd(t *testing.T) {
	srv := startServer(t, LineConfig{})
	conn := srv.dial(t)

	send(t, conn, "register alice pw user\n", handlers.Render(handlers.OutcomeRegistered))
	send(t, conn, "list\n", handlers.Render(handlers.OutcomeLoginRequired))
	send(t, conn, "login alice pw\n", handlers.Render(handlers.OutcomeLoggedIn))
	send(t, conn, "write_file notes.txt hello over tcp\n", handlers.Render(handlers.OutcomeWriteNewPath))
	send(t, conn, "read_file notes.txt\r\n", handlers.Render(handlers.OutcomeFileRead, 0, "hello over tcp"))
	send(t, conn, "create_folder docs\n", handlers.Render(handlers.OutcomeDirectoryCreated))
	send(t, conn, "list\n", handlers.Render(handlers.OutcomeListing, "docs\nnotes.txt"))
	send(t, conn, "quit\n", handlers.Render(handlers.OutcomeLoggedOut))
	expectClosed(t, conn)

	data, err := os.ReadFile(filepath.Join(srv.root, "alice", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello over tcp", string(data))

	require.Eventually(t, func() bool { return srv.adapter.GetActiveConnections() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestSessionsAreIndependent(t *testing.T) {
	srv := startServer(t, LineConfig{})
	require.NoError(t, srv.store.Register(context.Background(), "alice", "pw", "user"))

	first := srv.dial(t)
	second := srv.dial(t)

	send(t, first, "login alice pw\n", handlers.Render(handlers.OutcomeLoggedIn))
	send(t, second, "list\n", handlers.Render(handlers.OutcomeLoginRequired))
	send(t, second, "login alice pw\n", handlers.Render(handlers.OutcomeLoggedIn))

	send(t, first, "create_folder docs\n", handlers.Render(handlers.OutcomeDirectoryCreated))
	send(t, first, "change_folder docs\n", handlers.Render(handlers.OutcomeDirectoryChanged, "docs"))
	send(t, second, "list\n", handlers.Render(handlers.OutcomeListing, "docs"))
}

func TestUnterminatedFinalLine(t *testing.T) {
	srv := startServer(t, LineConfig{})
	conn := srv.dial(t)

	_, err := conn.Write([]byte("commands"))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	expect(t, conn, handlers.Render(handlers.OutcomeHelp))
	expectClosed(t, conn)
}

func TestOversizeLineClosesConnection(t *testing.T) {
	srv := startServer(t, LineConfig{MaxLineLength: 16})
	conn := srv.dial(t)

	send(t, conn, "commands\n", handlers.Render(handlers.OutcomeHelp))

	// Exactly at the limit is fine, terminator excluded.
	send(t, conn, strings.Repeat("x", 16)+"\r\n", handlers.Render(handlers.OutcomeInvalidCommand))

	_, err := conn.Write([]byte("write_file a.txt " + strings.Repeat("y", 64) + "\n"))
	require.NoError(t, err)
	expectClosed(t, conn)

	_, err = os.Stat(filepath.Join(srv.root, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestConnectionLimit(t *testing.T) {
	srv := startServer(t, LineConfig{MaxConnections: 1})

	first := srv.dial(t)
	send(t, first, "commands\n", handlers.Render(handlers.OutcomeHelp))

	rejected := srv.dial(t)
	expectClosed(t, rejected)

	send(t, first, "quit\n", handlers.Render(handlers.OutcomeLoggedOut))
	expectClosed(t, first)
	require.Eventually(t, func() bool { return srv.adapter.GetActiveConnections() == 0 },
		2*time.Second, 10*time.Millisecond)

	third := srv.dial(t)
	send(t, third, "commands\n", handlers.Render(handlers.OutcomeHelp))
}

func TestRateLimit(t *testing.T) {
	srv := startServer(t, LineConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 1}})
	conn := srv.dial(t)

	start := time.Now()
	for i := 0; i < 3; i++ {
		send(t, conn, "commands\n", handlers.Render(handlers.OutcomeHelp))
	}

	// Two waits of 200ms each after the first token.
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestIdleTimeout(t *testing.T) {
	srv := startServer(t, LineConfig{IdleTimeout: 100 * time.Millisecond})
	conn := srv.dial(t)

	send(t, conn, "commands\n", handlers.Render(handlers.OutcomeHelp))
	expectClosed(t, conn)
}

func TestGracefulShutdown(t *testing.T) {
	srv := startServer(t, LineConfig{ShutdownTimeout: 2 * time.Second})
	require.NoError(t, srv.store.Register(context.Background(), "alice", "pw", "user"))

	conn := srv.dial(t)
	send(t, conn, "login alice pw\n", handlers.Render(handlers.OutcomeLoggedIn))
	require.Eventually(t, func() bool { return srv.adapter.GetActiveConnections() == 1 },
		time.Second, 10*time.Millisecond)

	start := time.Now()
	err := srv.stop(t)

	// The idle session is unblocked immediately rather than force-closed.
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(0), srv.adapter.GetActiveConnections())
	expectClosed(t, conn)

	_, err = net.DialTimeout("tcp", srv.addr, 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed")
}

func TestStop_Idempotent(t *testing.T) {
	srv := startServer(t, LineConfig{})
	srv.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, srv.adapter.Stop(ctx))
	assert.NoError(t, srv.adapter.Stop(ctx))

	select {
	case <-srv.done:
		assert.NoError(t, srv.err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStop_ConcurrentWithServeListener(t *testing.T) {
	for i := 0; i < 20; i++ {
		store := users.NewStore(t.TempDir(), memory.NewInitialized())
		require.NoError(t, store.Load(context.Background()))
		adapter := New(LineConfig{}, nil)
		adapter.SetStore(store)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- adapter.ServeListener(context.Background(), ln) }()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		assert.NoError(t, adapter.Stop(ctx))
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatalf("iteration %d: ServeListener did not return after Stop", i)
		}
	}
}

func TestPort_ReportsBoundListener(t *testing.T) {
	srv := startServer(t, LineConfig{})

	_, port, err := net.SplitHostPort(srv.addr)
	require.NoError(t, err)
	assert.Equal(t, port, fmt.Sprint(srv.adapter.Port()))
	assert.NotEqual(t, DefaultPort, srv.adapter.Port())
}

func TestServe_RequiresStore(t *testing.T) {
	adapter := New(LineConfig{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = adapter.ServeListener(context.Background(), ln)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	adapter := New(LineConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 20}}, nil)

	cfg := adapter.config
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMaxLineLength, cfg.MaxLineLength)
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, uint(20), cfg.RateLimit.Burst)
	assert.Equal(t, DefaultPort, adapter.Port())
	assert.Equal(t, "LINE", adapter.Protocol())
}

func TestNew_PanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() { New(LineConfig{MaxConnections: -1}, nil) })
	assert.Panics(t, func() { New(LineConfig{Port: 70000}, nil) })
}

func TestContentLength(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"", 0},
		{"\n", 0},
		{"\r\n", 0},
		{"list", 4},
		{"list\n", 4},
		{"list\r\n", 4},
		{"a\rb\n", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentLength([]byte(tt.line)), "%q", tt.line)
	}
}
