// Package testhelpers provides common utilities and helper functions for
// testing the LineRelay server.
//
// It contains reusable test utilities shared across unit and integration
// tests: spinning up servers on ephemeral ports, writing credential file
// fixtures, and a minimal line-oriented test client with deadline-guarded
// reads.
package testhelpers

import (
	"bufio"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linerelay/linerelay/internal/chat"
)

// ReadTimeout bounds every read a test client performs so a missing line
// fails the test instead of hanging it.
const ReadTimeout = 2 * time.Second

// WriteUsersFile writes a credential file with the given raw lines into a
// test temp dir and returns its path.
func WriteUsersFile(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.txt")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write users file: %v", err)
	}
	return path
}

// UserLine formats a credential record the way the stock client logs in:
// username plus the SHA-256 digest of the password.
func UserLine(username, password string) string {
	return username + chat.CredentialSeparator + chat.HashPassword(password)
}

// StartServer boots a chat server on an ephemeral localhost port backed by
// the given users file. The server is shut down automatically when the test
// finishes.
func StartServer(t *testing.T, usersFile string) *chat.Server {
	t.Helper()

	cfg := chat.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.UsersFile = usersFile

	server := chat.NewServer(cfg, chat.NewFileCredentialStore(usersFile))
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Shutdown(ReadTimeout)
	})
	return server
}

// Client is a minimal line-oriented chat client for tests.
type Client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects a test client to addr.
func Dial(t *testing.T, addr string) *Client {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	c := &Client{t: t, conn: conn, reader: bufio.NewReader(conn)}
	t.Cleanup(c.Close)
	return c
}

// DialServer connects a test client to a running server.
func DialServer(t *testing.T, server *chat.Server) *Client {
	t.Helper()
	return Dial(t, server.Addr().String())
}

// Login sends a raw credential line and returns the server's verdict.
func (c *Client) Login(credentialLine string) string {
	c.t.Helper()
	c.SendLine(credentialLine)
	return c.ReadLine()
}

// LoginAs logs in with username and the hashed form of password, failing the
// test unless the server accepts.
func (c *Client) LoginAs(username, password string) {
	c.t.Helper()
	verdict := c.Login(UserLine(username, password))
	if verdict != chat.LoginOK {
		c.t.Fatalf("Login as %s failed, got verdict %q", username, verdict)
	}
}

// SendLine writes one line to the server.
func (c *Client) SendLine(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("Failed to send line %q: %v", line, err)
	}
}

// ReadLine reads one line, failing the test if none arrives within
// ReadTimeout.
func (c *Client) ReadLine() string {
	c.t.Helper()

	line, err := c.readLine(ReadTimeout)
	if err != nil {
		c.t.Fatalf("Failed to read line: %v", err)
	}
	return line
}

// TryReadLine reads one line or returns the read error (timeout, EOF).
func (c *Client) TryReadLine(timeout time.Duration) (string, error) {
	return c.readLine(timeout)
}

// ExpectNoLine asserts that nothing arrives within the given window.
func (c *Client) ExpectNoLine(window time.Duration) {
	c.t.Helper()

	line, err := c.readLine(window)
	if err == nil {
		c.t.Fatalf("Expected no line, received %q", line)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		c.t.Fatalf("Expected read timeout, got: %v", err)
	}
}

// ExpectEOF asserts that the server closes the connection within
// ReadTimeout. Any disconnect notice lines still in flight are drained
// first.
func (c *Client) ExpectEOF() {
	c.t.Helper()

	deadline := time.Now().Add(ReadTimeout)
	for {
		_, err := c.readLine(time.Until(deadline))
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatal("Expected connection to close, got a read timeout instead")
		}
		return
	}
}

// Close shuts the client's connection down. Safe to call more than once.
func (c *Client) Close() {
	_ = c.conn.Close()
}

func (c *Client) readLine(timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WaitFor polls condition until it holds or the timeout lapses.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %s: %s", timeout, message)
}
