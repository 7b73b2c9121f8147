package line

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
	"github.com/marmos91/sandfs/internal/ratelimiter"
	"github.com/marmos91/sandfs/pkg/session"
)

// errLineTooLong is returned when a client sends a line longer than
// MaxLineLength. The connection is closed without a response.
var errLineTooLong = errors.New("command line too long")

// LineConnection serves one client: it reads command lines, runs them in
// order against the adapter's interpreter and writes each response back.
// It exclusively owns the session of its client.
type LineConnection struct {
	server  *LineAdapter
	conn    net.Conn
	id      string
	log     *logger.Logger
	reader  *bufio.Reader
	session *session.Session
	limiter *ratelimiter.RateLimiter
}

func NewLineConnection(server *LineAdapter, conn net.Conn) *LineConnection {
	id := uuid.NewString()
	c := &LineConnection{
		server:  server,
		conn:    conn,
		id:      id,
		log:     logger.With(map[string]any{"conn_id": id, "client": conn.RemoteAddr().String()}),
		reader:  bufio.NewReader(conn),
		session: session.New(server.config.ChunkSize),
	}
	if rl := server.config.RateLimit; rl.RequestsPerSecond > 0 {
		c.limiter = ratelimiter.New(rl.RequestsPerSecond, rl.Burst)
	}
	return c
}

func (s *LineAdapter) newConn(tcpConn net.Conn) *LineConnection {
	return NewLineConnection(s, tcpConn)
}

// Serve handles all commands for this connection.
// It implements panic recovery so a misbehaving session cannot crash the
// server.
//
// The connection is closed when:
//   - The context is cancelled (server shutdown)
//   - The client sends quit (after the response is written)
//   - An idle, read or write timeout occurs
//   - A line exceeds MaxLineLength
//   - An I/O error occurs or the client closes the connection
func (c *LineConnection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Panic in connection handler: %v", r)
		}
		_ = c.conn.Close()
	}()

	c.log.Debug("New connection")

	// Unblock a pending read on shutdown; a command in flight still completes.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Connection closed due to context cancellation")
			return
		case <-c.server.shutdown:
			c.log.Debug("Connection closed due to server shutdown")
			return
		default:
		}

		closeAfter, err := c.handleRequest(ctx)
		if err != nil {
			var netErr net.Error
			switch {
			case ctx.Err() != nil:
				c.log.Debug("Connection closed due to server shutdown")
			case errors.Is(err, io.EOF):
				c.log.Debug("Connection closed by client")
			case errors.As(err, &netErr) && netErr.Timeout():
				c.log.Debug("Connection timed out: %v", err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				c.log.Debug("Connection cancelled: %v", err)
			case errors.Is(err, errLineTooLong):
				c.log.Warn("Closing connection: line exceeds %d bytes", c.server.config.MaxLineLength)
			case errors.Is(err, net.ErrClosed):
				c.log.Debug("Connection closed during shutdown")
			default:
				c.log.Warn("Closing connection after error: %v", err)
			}
			return
		}
		if closeAfter {
			c.log.Debug("Client quit")
			return
		}
	}
}

// handleRequest reads one line, executes it and writes the response.
// It reports whether the connection should be closed afterwards.
func (c *LineConnection) handleRequest(ctx context.Context) (bool, error) {
	line, err := c.readLine(ctx)
	if err != nil {
		return false, err
	}
	c.server.metrics.RecordBytesTransferred("in", uint64(len(line)))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.server.interpreter.Handle(&handlers.Context{
		Context: ctx,
		Session: c.session,
		Log:     c.log,
	}, line)
	if err != nil {
		return false, fmt.Errorf("handle command: %w", err)
	}

	if err := c.sendResponse(resp.Text); err != nil {
		return false, err
	}
	return resp.Close, nil
}

// readLine returns the next command line, terminator included.
//
// Waiting for the first byte is bounded by IdleTimeout; the rest of the
// line by ReadTimeout. A final line without terminator is returned as is
// when the client half-closes; io.EOF follows on the next call.
func (c *LineConnection) readLine(ctx context.Context) (string, error) {
	cfg := c.server.config

	if err := c.setReadDeadline(cfg.IdleTimeout); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := c.reader.Peek(1); err != nil {
		return "", err
	}
	if err := c.setReadDeadline(cfg.ReadTimeout); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if contentLength(buf) > cfg.MaxLineLength {
			return "", errLineTooLong
		}

		switch {
		case err == nil:
			return string(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return string(buf), nil
		default:
			return "", err
		}
	}
}

func (c *LineConnection) setReadDeadline(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}
	return nil
}

// sendResponse writes the whole response in a single write.
func (c *LineConnection) sendResponse(text string) error {
	if c.server.config.WriteTimeout > 0 {
		deadline := time.Now().Add(c.server.config.WriteTimeout)
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	n, err := c.conn.Write([]byte(text))
	c.server.metrics.RecordBytesTransferred("out", uint64(n))
	if err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	c.log.Debug("Sent response (%d bytes)", n)
	return nil
}

// contentLength is the length of a line without its "\n" or "\r\n".
func contentLength(line []byte) int {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return n
}
