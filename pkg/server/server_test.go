package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/pkg/adapter/line"
	"github.com/marmos91/sandfs/pkg/gc"
	"github.com/marmos91/sandfs/pkg/users"
	"github.com/marmos91/sandfs/pkg/users/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	protocol string
	port     int
	serveErr error

	mu      sync.Mutex
	store   *users.Store
	stopped bool
	stopCh  chan struct{}
	once    sync.Once
}

func newStub(protocol string, port int) *stubAdapter {
	return &stubAdapter{protocol: protocol, port: port, stopCh: make(chan struct{})}
}

func (a *stubAdapter) Serve(ctx context.Context) error {
	if a.serveErr != nil {
		return a.serveErr
	}
	select {
	case <-ctx.Done():
	case <-a.stopCh:
	}
	return nil
}

func (a *stubAdapter) SetStore(store *users.Store) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = store
}

func (a *stubAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.once.Do(func() { close(a.stopCh) })
	return nil
}

func (a *stubAdapter) Protocol() string { return a.protocol }
func (a *stubAdapter) Port() int        { return a.port }

func (a *stubAdapter) wasStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func newStore(t *testing.T) *users.Store {
	t.Helper()
	store := users.NewStore(t.TempDir(), memory.NewInitialized())
	require.NoError(t, store.Load(context.Background()))
	return store
}

func TestAddAdapter_InjectsStore(t *testing.T) {
	store := newStore(t)
	srv := New(store, time.Second)

	a := newStub("LINE", 8080)
	require.NoError(t, srv.AddAdapter(a))

	assert.Same(t, store, a.store)
	assert.Len(t, srv.Adapters(), 1)
}

func TestAddAdapter_Conflicts(t *testing.T) {
	srv := New(newStore(t), time.Second)
	require.NoError(t, srv.AddAdapter(newStub("LINE", 8080)))

	assert.Error(t, srv.AddAdapter(newStub("LINE", 9000)), "duplicate protocol")
	assert.Error(t, srv.AddAdapter(newStub("OTHER", 8080)), "duplicate port")
	assert.NoError(t, srv.AddAdapter(newStub("OTHER", 9000)))
}

func TestNew_PanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() { New(nil, time.Second) })
}

func TestServe_NoAdapters(t *testing.T) {
	srv := New(newStore(t), time.Second)
	assert.Error(t, srv.Serve(context.Background()))
}

func TestServe_CancelStopsAdapters(t *testing.T) {
	srv := New(newStore(t), time.Second)
	first := newStub("LINE", 8080)
	second := newStub("OTHER", 9000)
	require.NoError(t, srv.AddAdapter(first))
	require.NoError(t, srv.AddAdapter(second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.True(t, first.wasStopped())
	assert.True(t, second.wasStopped())

	assert.Error(t, srv.Serve(context.Background()), "second Serve must fail")
	assert.Panics(t, func() { _ = srv.AddAdapter(newStub("LATE", 1)) })
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New(newStore(t), time.Second)
	healthy := newStub("LINE", 8080)
	broken := newStub("BROKEN", 9000)
	broken.serveErr = errors.New("bind failed")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BROKEN")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after adapter failure")
	}
	assert.True(t, healthy.wasStopped())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestServe_LineAdapter(t *testing.T) {
	store := newStore(t)
	srv := New(store, 2*time.Second)

	port := freePort(t)
	require.NoError(t, srv.AddAdapter(line.New(line.LineConfig{Enabled: true, Port: port}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer func() { _ = conn.Close() }()

	_, err := conn.Write([]byte("register alice pw user\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	want := handlers.Render(handlers.OutcomeRegistered)
	reply := make([]byte, len(want))
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)
	assert.Equal(t, want, string(reply))

	assert.True(t, store.Contains("alice"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestServe_RunsCollector(t *testing.T) {
	store := newStore(t)
	orphan := filepath.Join(store.SessionRoot(), "ghost")
	require.NoError(t, os.MkdirAll(orphan, 0755))

	srv := New(store, time.Second)
	require.NoError(t, srv.AddAdapter(newStub("LINE", 8080)))
	srv.SetCollector(gc.NewCollector(store, gc.Config{Enabled: true, Interval: 20 * time.Millisecond}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(orphan)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
