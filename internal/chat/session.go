// Package chat manages individual client sessions, serializing writes and
// guaranteeing exactly-once teardown no matter which trigger wins.
package chat

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session is one live client connection and its state. It owns its Transport
// exclusively: all writes go through Send, and the transport is closed
// exactly once by whichever caller wins Disconnect.
type Session struct {
	id        uuid.UUID
	transport Transport

	// username is written once by the lifecycle; the mutex covers the case
	// where a shutdown sweep observes the session mid-login.
	usernameMu sync.RWMutex
	username   string

	writeMu    sync.Mutex
	terminated atomic.Bool
}

// NewSession wraps a transport in an unauthenticated session.
func NewSession(transport Transport) *Session {
	return &Session{
		id:        uuid.New(),
		transport: transport,
	}
}

// ID returns the session's unique identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Username returns the authenticated username, or "" before login succeeds.
func (s *Session) Username() string {
	s.usernameMu.RLock()
	defer s.usernameMu.RUnlock()
	return s.username
}

// SetUsername records the authenticated identity. Called exactly once, after
// the credential check passes and before the session enters the registry.
func (s *Session) SetUsername(name string) {
	s.usernameMu.Lock()
	s.username = name
	s.usernameMu.Unlock()
}

// RemoteAddr describes the peer for logging.
func (s *Session) RemoteAddr() string {
	return s.transport.RemoteAddr()
}

// Terminated reports whether the session has been torn down.
func (s *Session) Terminated() bool {
	return s.terminated.Load()
}

// ReadLine blocks until the peer sends a line or the transport ends.
func (s *Session) ReadLine() (string, error) {
	return s.transport.ReadLine()
}

// Send writes one line to the client. Sends are serialized by an internal
// mutex so a broadcast and a direct admin message can never interleave on the
// wire. After termination Send is a no-op; write failures are logged, never
// returned, because a dying peer must not affect the sender.
func (s *Session) Send(line string) {
	if s.terminated.Load() {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.terminated.Load() {
		return
	}
	if err := s.transport.WriteLine(line); err != nil && !IsClosedConn(err) {
		log.Printf("Error writing to %s: %v", s.RemoteAddr(), err)
	}
}

// Disconnect tears the session down. It is safe to call from any goroutine
// and any number of times; the terminated flag is checked-and-set atomically
// and only the winner delivers the final notice and closes the transport.
func (s *Session) Disconnect(reason string) {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}

	// Best effort: the peer may already be gone.
	s.writeMu.Lock()
	_ = s.transport.WriteLine(DisconnectNotice(reason))
	s.writeMu.Unlock()

	if err := s.transport.Close(); err != nil && !IsClosedConn(err) {
		log.Printf("Error closing connection to %s: %v", s.RemoteAddr(), err)
	}
	log.Printf("Session %s disconnected (%s)", s.describe(), reason)
}

func (s *Session) describe() string {
	if name := s.Username(); name != "" {
		return name + "@" + s.RemoteAddr()
	}
	return s.RemoteAddr()
}
