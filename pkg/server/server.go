package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/adapter"
	"github.com/marmos91/sandfs/pkg/gc"
	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/marmos91/sandfs/pkg/users"
)

// DefaultShutdownTimeout bounds the time adapters get to drain on shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// SandServer manages the lifecycle of the protocol adapters that share one
// user store and session root.
//
// Lifecycle:
//  1. Creation: New() with a loaded user store
//  2. Registration: AddAdapter() for each protocol, SetMetricsServer() optionally
//  3. Startup: Serve() starts the metrics server and all adapters concurrently
//  4. Shutdown: Context cancellation stops adapters in reverse order, then
//     the garbage collector and the metrics server, then closes the user store
//
// Thread safety:
// SandServer is safe for concurrent use. AddAdapter() may be called
// concurrently with other methods. Serve() may only be called once.
//
// Example usage:
//
//	srv := New(store, cfg.Server.ShutdownTimeout)
//	srv.AddAdapter(line.New(lineConfig, lineMetrics))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type SandServer struct {
	// store is the user registry shared by all adapters
	store *users.Store

	// adapters contains all registered protocol adapters
	adapters []adapter.Adapter

	// metricsServer exposes /metrics and /healthz (nil if disabled)
	metricsServer *metrics.Server

	// collector removes orphaned sandboxes in the background (nil if unset)
	collector *gc.Collector

	// shutdownTimeout bounds adapter Stop() calls
	shutdownTimeout time.Duration

	// mu protects adapters, metricsServer, collector and served
	mu sync.RWMutex

	// served is set once Serve() has been called
	served bool
}

// New creates a SandServer around store.
//
// A shutdownTimeout of zero uses DefaultShutdownTimeout.
//
// Panics if store is nil (indicates programmer error).
func New(store *users.Store, shutdownTimeout time.Duration) *SandServer {
	if store == nil {
		panic("user store cannot be nil")
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	return &SandServer{
		store:           store,
		adapters:        make([]adapter.Adapter, 0, 2),
		shutdownTimeout: shutdownTimeout,
	}
}

// SetMetricsServer registers the metrics HTTP server started alongside the
// adapters. Must be called before Serve().
func (s *SandServer) SetMetricsServer(ms *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = ms
}

// SetCollector registers the sandbox garbage collector. It is started after
// the adapters and stopped once they have drained. Must be called before
// Serve().
func (s *SandServer) SetCollector(c *gc.Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collector = c
}

// AddAdapter registers a new protocol adapter with the server.
//
// The shared user store is injected into the adapter. Duplicate protocols or
// port conflicts are detected and return an error.
//
// Panics if:
//   - adapter is nil (programmer error)
//   - Serve() has already been called (server is running)
func (s *SandServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port && port != 0 {
			return fmt.Errorf("port %d already in use by %s adapter",
				port, existing.Protocol())
		}
	}

	a.SetStore(s.store)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Shutdown behavior:
// When the context is cancelled or an adapter fails:
//   - All adapters receive Stop() calls in reverse registration order
//   - Serve() waits for every adapter goroutine to return
//   - The metrics server is stopped and the user store closed
//
// Returns:
//   - context.Canceled (or the context's error) after a signal-driven shutdown
//   - error if an adapter failed to start or failed while running
//   - error if Serve() was already called
func (s *SandServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true

	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	collector := s.collector
	s.mu.Unlock()

	logger.Info("Starting SandServer with %d adapter(s), session root %s",
		len(adapters), s.store.SessionRoot())

	// Metrics get their own context so they outlive adapter draining.
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	metricsDone := make(chan struct{})
	if metricsServer != nil {
		go func() {
			defer close(metricsDone)
			if err := metricsServer.Start(metricsCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	} else {
		close(metricsDone)
	}

	// Buffered to prevent goroutine leaks if multiple adapters fail simultaneously
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped with %v", protocol, err)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	if collector != nil {
		collector.Start()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	if collector != nil {
		gcCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		if err := collector.Stop(gcCtx); err != nil {
			logger.Warn("Sandbox garbage collector did not stop cleanly: %v", err)
		}
		cancel()
	}

	stopMetrics()
	<-metricsDone

	if err := s.store.Close(); err != nil {
		logger.Error("Error closing user store: %v", err)
	}

	logger.Info("SandServer stopped")

	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error for better error reporting.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters initiates graceful shutdown of all adapters in reverse
// registration order. Errors are logged and do not stop the remaining
// adapters from being signalled.
func (s *SandServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}

// Adapters returns a snapshot of currently registered adapters.
func (s *SandServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
