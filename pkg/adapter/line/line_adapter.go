package line

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/internal/protocol/command"
	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/marmos91/sandfs/pkg/session"
	"github.com/marmos91/sandfs/pkg/users"
)

// LineAdapter implements the adapter.Adapter interface for the SandFS line
// protocol: one UTF-8 command per line in, one response blob per command out.
//
// Architecture:
// LineAdapter manages the TCP listener and connection lifecycle. Each accepted
// connection is handled by a LineConnection on its own goroutine, which owns
// the connection's session and runs its commands strictly in order through
// the shared command.Interpreter. The accept loop never does connection I/O.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (connections stop after the current command)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses sync.Once
// to ensure idempotent behavior even if Stop() is called multiple times.
type LineAdapter struct {
	// config holds the server configuration (ports, timeouts, limits)
	config LineConfig

	// listener is the TCP listener for accepting client connections
	// Closed during shutdown to stop accepting new connections
	listener   net.Listener
	listenerMu sync.Mutex

	// boundPort is the port the listener actually bound, 0 before Serve
	boundPort atomic.Int32

	// ready is closed once the listener is bound (or binding failed)
	ready     chan struct{}
	readyOnce sync.Once

	// store is the shared user store, injected by SetStore
	store *users.Store

	// interpreter executes command lines; created when the store is injected
	interpreter *command.Interpreter

	// metrics provides optional Prometheus metrics collection
	metrics metrics.LineMetrics

	// activeConns tracks all currently active connections for graceful shutdown
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once

	// shutdown signals that graceful shutdown has been initiated
	shutdown chan struct{}

	// connCount tracks the current number of active connections
	connCount atomic.Int32

	// connSemaphore limits the number of concurrent connections if MaxConnections > 0
	// nil if MaxConnections is 0 (unlimited)
	connSemaphore chan struct{}

	// shutdownCtx is cancelled during shutdown to stop in-flight sessions
	shutdownCtx context.Context

	// cancelRequests cancels shutdownCtx during shutdown
	cancelRequests context.CancelFunc

	// activeConnections maps connection ID to net.Conn for forced closure
	activeConnections sync.Map
}

// LineConfig holds configuration parameters for the line protocol server.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - MaxConnections: 0 (unlimited)
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - IdleTimeout: 5m
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
//   - MaxLineLength: 4096
//   - ChunkSize: 100
type LineConfig struct {
	// Enabled controls whether the line adapter is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on. If 0, defaults to 8080.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// MaxConnections limits the number of concurrent client connections.
	// When reached, new connections are accepted and immediately closed.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// ReadTimeout bounds how long a client may take to finish a line once
	// it has started sending it.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0" yaml:"read_timeout"`

	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0" yaml:"write_timeout"`

	// IdleTimeout is how long a connection may wait between commands before
	// it is closed.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for active connections
	// during graceful shutdown. Remaining connections are then force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// MetricsLogInterval is the interval at which to log connection counts.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0" yaml:"metrics_log_interval"`

	// MaxLineLength is the longest accepted command line in bytes, line
	// terminator excluded. A longer line closes the connection.
	MaxLineLength int `mapstructure:"max_line_length" validate:"min=0" yaml:"max_line_length"`

	// ChunkSize is the number of characters returned per read_file call.
	// Set from the sandbox section of the server configuration.
	ChunkSize int `mapstructure:"-" yaml:"-" validate:"min=0"`

	// RateLimit throttles commands per connection. Zero disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures the per-connection token bucket.
//
// Commands over the limit wait for a token; they are never dropped.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained command rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the bucket capacity. Defaults to RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// DefaultPort is the line protocol port used when none is configured.
const DefaultPort = 8080

// DefaultMaxLineLength is the default command line limit in bytes.
const DefaultMaxLineLength = 4096

// applyDefaults fills in zero values with sensible defaults.
func (c *LineConfig) applyDefaults() {
	// Enabled is defaulted in pkg/config so an explicit false survives.

	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = DefaultMaxLineLength
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = session.DefaultChunkSize
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.RequestsPerSecond
	}
}

// validate checks that the configuration is usable.
func (c *LineConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("invalid MaxLineLength %d: must be >= 0", c.MaxLineLength)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("invalid ChunkSize %d: must be >= 0", c.ChunkSize)
	}
	return nil
}

// New creates a new LineAdapter with the specified configuration.
//
// The adapter is created in a stopped state. Call SetStore() to inject the
// user store, then call Serve() to start accepting connections.
//
// Panics if config validation fails.
func New(config LineConfig, lineMetrics metrics.LineMetrics) *LineAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid line adapter config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Line connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Line connection limit: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if lineMetrics == nil {
		lineMetrics = metrics.NewNoopLineMetrics()
	}

	return &LineAdapter{
		config:         config,
		metrics:        lineMetrics,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetStore injects the shared user store and builds the interpreter on it.
func (s *LineAdapter) SetStore(store *users.Store) {
	s.store = store
	s.interpreter = command.New(store, s.metrics)
	logger.Debug("Line adapter user store configured")
}

// Serve listens on the configured port and serves connections until the
// context is cancelled.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener fails to start or shutdown is not graceful
func (s *LineAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		s.markReady()
		return fmt.Errorf("failed to create line listener on port %d: %w", s.config.Port, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves connections accepted from listener until the context
// is cancelled. The adapter takes ownership of the listener.
//
// Serve() is the usual entry point; ServeListener lets callers bind the
// socket themselves (ephemeral ports in tests, inherited sockets).
func (s *LineAdapter) ServeListener(ctx context.Context, listener net.Listener) error {
	if s.interpreter == nil {
		_ = listener.Close()
		s.markReady()
		return fmt.Errorf("line adapter: SetStore must be called before Serve")
	}

	s.listenerMu.Lock()
	s.listener = listener
	// A shutdown may have been requested before the listener existed.
	select {
	case <-s.shutdown:
		_ = listener.Close()
	default:
	}
	s.listenerMu.Unlock()

	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(addr.Port))
	}
	s.markReady()

	logger.Info("Line server listening on %s", listener.Addr())
	logger.Debug("Line config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v max_line_length=%d",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout, s.config.MaxLineLength)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Line shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting line connection: %v", err)
				continue
			}
		}

		// Over the limit: refuse rather than hold the client in the backlog.
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			default:
				s.metrics.RecordConnectionRejected()
				logger.Warn("Line connection from %s rejected: max_connections (%d) reached",
					tcpConn.RemoteAddr(), s.config.MaxConnections)
				_ = tcpConn.Close()
				continue
			}
		}

		conn := s.newConn(tcpConn)

		s.activeConns.Add(1)
		s.connCount.Add(1)
		s.activeConnections.Store(conn.id, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		conn.log.Debug("Line connection accepted (active: %d)", currentConns)

		go func() {
			defer func() {
				s.activeConnections.Delete(conn.id)

				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				s.connCount.Add(-1)
				s.activeConns.Done()

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				conn.log.Debug("Line connection closed (active: %d)", currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}()
	}
}

func (s *LineAdapter) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// initiateShutdown closes the listener and cancels every session. Safe to
// call multiple times and from multiple goroutines.
func (s *LineAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Line shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing line listener: %v", err)
			}
		}
		s.listenerMu.Unlock()

		s.cancelRequests()
		logger.Debug("Line cancellation signal sent to all sessions")
	})
}

// gracefulShutdown waits for active connections to complete or timeout.
//
// Returns:
//   - nil if all connections completed gracefully
//   - error if shutdown timeout exceeded (connections were force-closed)
func (s *LineAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Line graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Line graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Line shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("line shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes all tracked TCP connections so that sessions
// blocked in I/O fail immediately.
func (s *LineAdapter) forceCloseConnections() {
	logger.Info("Force-closing active line connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
			logger.Debug("Force-closed connection %s", id)
		}
		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// ctx is done. A nil ctx waits up to the configured ShutdownTimeout.
func (s *LineAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	activeCount := s.connCount.Load()
	logger.Info("Line graceful shutdown: waiting for %d active connection(s) (context timeout)",
		activeCount)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Line graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Line shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs the active connection count.
func (s *LineAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Line metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *LineAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// WaitReady blocks until Serve has bound its listener (or failed to) or ctx
// is done.
func (s *LineAdapter) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Port returns the bound TCP port once listening, the configured port before.
func (s *LineAdapter) Port() int {
	if p := s.boundPort.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}

// Protocol returns "LINE" as the protocol identifier.
func (s *LineAdapter) Protocol() string {
	return "LINE"
}
