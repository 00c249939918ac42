// Package chat abstracts one client connection behind the Transport
// interface so the session lifecycle is independent of the underlying
// protocol (raw TCP or the WebSocket gateway).
package chat

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Transport is a reliable, ordered stream of newline-delimited text lines.
// Implementations are not required to be safe for concurrent writes; the
// Session serializes all sends through a single entry point.
type Transport interface {
	// ReadLine blocks until a full line arrives, the peer closes the stream
	// (io.EOF), or the transport is closed underneath the read.
	ReadLine() (string, error)

	// WriteLine writes one line followed by the line terminator.
	WriteLine(line string) error

	// Close shuts the transport down, unblocking any pending ReadLine.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

type tcpTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPTransport wraps a net.Conn as a line-oriented Transport. Lines longer
// than maxLineBytes terminate the stream with bufio.ErrTooLong, which the
// session lifecycle treats like any other fatal read error.
func NewTCPTransport(conn net.Conn, maxLineBytes int) Transport {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}
	scanner := bufio.NewScanner(conn)
	// Scanner takes the larger of max and cap(buf) as its limit, so the
	// initial buffer must not exceed the configured bound.
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)
	return &tcpTransport{conn: conn, scanner: scanner}
}

func (t *tcpTransport) ReadLine() (string, error) {
	if t.scanner.Scan() {
		return strings.TrimRight(t.scanner.Text(), "\r"), nil
	}
	if err := t.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (t *tcpTransport) WriteLine(line string) error {
	_, err := t.conn.Write([]byte(line + "\n"))
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// IsClosedConn reports whether err is one of the routine ways a chat
// connection ends: the peer hung up, or the socket was closed underneath a
// blocked read during a kick or shutdown. Classification is structural
// (errors.Is), never based on error-message text.
func IsClosedConn(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
