// Package chat drives each session through its protocol states:
// authenticate, relay, terminate.
package chat

import (
	"log"
	"strings"
)

// runSession owns one connection from handshake to teardown. It always ends
// in terminate, so the transport is closed and the registry entry gone no
// matter how the session ends.
func (s *Server) runSession(sess *Session) {
	defer s.untrackPending(sess)
	defer s.terminate(sess, ReasonConnectionClosed)

	if !s.authenticate(sess) {
		return
	}
	s.relay(sess)
}

// authenticate reads the single credential line, answers with the login
// verdict, and registers the session on success. A malformed line (anything
// but exactly two colon-separated fields) counts as a failed login, not a
// protocol error.
func (s *Server) authenticate(sess *Session) bool {
	line, err := sess.ReadLine()
	if err != nil {
		if !IsClosedConn(err) {
			log.Printf("Error reading credentials from %s: %v", sess.RemoteAddr(), err)
		}
		return false
	}

	fields := strings.Split(line, CredentialSeparator)
	if len(fields) != 2 || !s.store.Verify(fields[0], fields[1]) {
		sess.Send(LoginFailed)
		log.Printf("Failed login attempt from %s", sess.RemoteAddr())
		return false
	}

	sess.SetUsername(fields[0])
	sess.Send(LoginOK)
	s.registry.Add(sess)
	s.untrackPending(sess)
	log.Printf("User %s logged in from %s", sess.Username(), sess.RemoteAddr())

	// A shutdown that raced with registration may have swept the registry
	// before this session entered it.
	if s.closing() {
		s.terminate(sess, ReasonServerShutdown)
		return false
	}
	return true
}

// relay pumps lines from the session to every other registered session until
// the stream ends. Each line goes out prefixed with the sender's username.
// A line that was already read when a kick or shutdown lands is still
// delivered; termination takes effect at the next read.
func (s *Server) relay(sess *Session) {
	for {
		line, err := sess.ReadLine()
		if err != nil {
			if IsClosedConn(err) {
				log.Printf("Connection closed for %s", sess.describe())
			} else {
				log.Printf("Read error from %s: %v", sess.describe(), err)
			}
			return
		}

		log.Printf("%s: %s", sess.Username(), line)
		s.registry.Broadcast(sess.Username()+": "+line, sess)
	}
}

// terminate removes the session from the registry and closes its transport.
// Safe to reach from the session's own goroutine, an admin kick, and the
// shutdown sweep in any combination: both halves are idempotent.
func (s *Server) terminate(sess *Session, reason string) {
	s.registry.Remove(sess)
	sess.Disconnect(reason)
}
