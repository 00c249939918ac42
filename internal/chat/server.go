// Package chat constructs and runs the LineRelay TCP server: the accept
// loop, shutdown coordination, and tracking of every live connection.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// Server owns the TCP listener, the session registry, and the lifecycle of
// every connection goroutine. Each Server is an independent instance; two
// servers in one process never share state.
type Server struct {
	cfg      Config
	store    CredentialStore
	registry *Registry

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	// pending holds sessions that have been accepted but not yet finished
	// authenticating. They are not in the registry, so the shutdown sweep
	// needs its own handle on them to unblock their credential reads.
	pending map[*Session]struct{}

	wg sync.WaitGroup
}

// NewServer creates a server for the given configuration and credential
// store. Call Start to begin accepting connections.
func NewServer(cfg Config, store CredentialStore) *Server {
	return &Server{
		cfg:      sanitizeConfig(cfg),
		store:    store,
		registry: NewRegistry(),
		pending:  make(map[*Session]struct{}),
	}
}

// Registry returns the server's session registry, shared with the operator
// console.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the bound listen address, or nil before Start. Useful when
// the configured port is 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and launches the accept loop in the background.
// A bind failure is returned to the caller and is fatal: the server cannot
// operate without its listening port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.ListenAddr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server already shut down")
	}
	s.listener = ln
	s.mu.Unlock()

	log.Printf("Chat server listening on %s", ln.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

// acceptLoop accepts connections until the listener is closed. Closing the
// listener during shutdown is the normal way to stop it, so net.ErrClosed
// exits quietly; any other accept error is logged and the loop continues.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Println("Listener closed, accept loop exiting")
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}

		log.Printf("New connection from %s", conn.RemoteAddr())
		transport := NewTCPTransport(conn, s.cfg.MaxLineBytes)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeTransport(transport)
		}()
	}
}

// ServeTransport runs the full session lifecycle for an already-established
// transport and returns when the session terminates. The accept loop calls
// it for TCP connections; the WebSocket gateway calls it from its connection
// handlers.
func (s *Server) ServeTransport(transport Transport) {
	sess := NewSession(transport)
	if !s.trackPending(sess) {
		sess.Disconnect(ReasonServerShutdown)
		return
	}
	s.runSession(sess)
}

// trackPending records a not-yet-authenticated session so the shutdown sweep
// can close its transport. It refuses new sessions once shutdown has begun.
func (s *Server) trackPending(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending[sess] = struct{}{}
	return true
}

func (s *Server) untrackPending(sess *Session) {
	s.mu.Lock()
	delete(s.pending, sess)
	s.mu.Unlock()
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Shutdown stops accepting connections, disconnects every session, and
// waits up to timeout for the connection goroutines to drain. It is
// idempotent and leaves the registry empty; closing the transports unblocks
// every read the sessions are parked on, so no goroutine stays behind on the
// closed socket.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	stillPending := make([]*Session, 0, len(s.pending))
	for sess := range s.pending {
		stillPending = append(stillPending, sess)
	}
	s.mu.Unlock()

	log.Println("Shutting down chat server...")

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("Error closing listener: %v", err)
		}
	}

	// Sessions still in the credential handshake first, then the sweep of
	// everything registered.
	for _, sess := range stillPending {
		sess.Disconnect(ReasonServerShutdown)
	}
	s.registry.DisconnectAll(ReasonServerShutdown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Shutdown timeout reached, some connections may still be draining")
		return context.DeadlineExceeded
	}
}
