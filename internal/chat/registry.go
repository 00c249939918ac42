// Package chat coordinates session registration, message broadcast, and
// connection cleanup for the LineRelay service via the Registry type.
package chat

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Registry is the shared collection of active sessions. It is the only piece
// of mutable state shared between the accept loop, the per-connection
// goroutines, and the operator console, and it guarantees thread-safe
// add/remove/iterate through a coarse mutex with copy-on-iterate broadcasts.
//
// A session is in the registry if and only if it is authenticated and not
// yet terminated: every removal path also disconnects the session, and
// Session.Send absorbs the window where a broadcast snapshot still holds a
// session another goroutine is tearing down.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Add registers an authenticated session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()
	log.Printf("Session registered for %s. Total sessions: %d", s.describe(), count)
}

// Remove unregisters a session. Removing a session that is not registered is
// a no-op, so the self-termination, kick, and shutdown paths can all call it
// without coordinating.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s.ID()]
	if ok {
		delete(r.sessions, s.ID())
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		log.Printf("Session unregistered for %s. Total sessions: %d", s.describe(), count)
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns a copy of the current session set so iteration never
// holds the lock across network writes.
func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast delivers line to every registered session except excluding; pass
// nil to address everyone. The registry is snapshotted first, so concurrent
// registration changes never block or corrupt the fan-out. A session that
// joins or leaves mid-broadcast may or may not see this particular line.
func (r *Registry) Broadcast(line string, excluding *Session) {
	for _, s := range r.snapshot() {
		if s == excluding {
			continue
		}
		s.Send(line)
	}
}

// FindByUsername returns the registered session for name, or nil.
func (r *Registry) FindByUsername(name string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.Username() == name {
			return s
		}
	}
	return nil
}

// Kick removes and disconnects the session registered under username. It
// reports whether a session was found; kicking an unknown username is a
// harmless no-op.
func (r *Registry) Kick(username, reason string) bool {
	s := r.FindByUsername(username)
	if s == nil {
		return false
	}
	r.Remove(s)
	s.Disconnect(reason)
	return true
}

// DisconnectAll removes and disconnects every registered session, leaving
// the registry empty. Used by the shutdown sweep.
func (r *Registry) DisconnectAll(reason string) {
	sessions := r.snapshot()
	for _, s := range sessions {
		r.Remove(s)
		s.Disconnect(reason)
	}
	if len(sessions) > 0 {
		log.Printf("Disconnected %d sessions (%s)", len(sessions), reason)
	}
}
