package framework

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/marmos91/sandfs/internal/protocol/command/handlers"
)

// Client is a line protocol client bound to one connection.
//
// Responses carry no terminator, so every read is sized by the response the
// caller expects.
type Client struct {
	t       testing.TB
	conn    net.Conn
	timeout time.Duration
}

// Dial connects a client to the test server
func Dial(t testing.TB, port int) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect to port %d: %v", port, err)
	}

	c := &Client{t: t, conn: conn, timeout: 5 * time.Second}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Send writes one command line
func (c *Client) Send(line string) {
	c.t.Helper()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("Failed to set write deadline: %v", err)
	}
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		c.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// ExpectText reads exactly len(want) bytes and compares them to want
func (c *Client) ExpectText(want string) {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(c.conn, got); err != nil {
		c.t.Fatalf("Failed to read response (want %q, got %q): %v", want, got, err)
	}
	if string(got) != want {
		c.t.Fatalf("Unexpected response:\n got: %q\nwant: %q", got, want)
	}
}

// Expect reads the rendering of outcome with args
func (c *Client) Expect(outcome handlers.Outcome, args ...any) {
	c.t.Helper()
	c.ExpectText(handlers.Render(outcome, args...))
}

// Do sends line and expects the rendering of outcome with args
func (c *Client) Do(line string, outcome handlers.Outcome, args ...any) {
	c.t.Helper()
	c.Send(line)
	c.Expect(outcome, args...)
}

// Login authenticates the connection
func (c *Client) Login(username, password string) {
	c.t.Helper()
	c.Do(fmt.Sprintf("login %s %s", username, password), handlers.OutcomeLoggedIn)
}

// ExpectClosed waits until the server closes the connection
func (c *Client) ExpectClosed() {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	buf := make([]byte, 64)
	n, err := c.conn.Read(buf)
	if err == nil {
		c.t.Fatalf("Expected connection to be closed, read %q", buf[:n])
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.t.Fatalf("Connection still open after %v", c.timeout)
	}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
