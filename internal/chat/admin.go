// Package chat implements the operator console that dispatches SEND, KICK,
// and STOP commands against a running server.
package chat

import (
	"bufio"
	"io"
	"log"
	"strings"
)

// Console reads operator command lines and applies them to the server's
// registry. Input is any line source, so tests can drive it with a pipe or a
// strings.Reader instead of the process's stdin.
type Console struct {
	server *Server
	label  string
}

// NewConsole creates a console bound to server. label prefixes operator
// broadcasts, e.g. "Admin: everyone please reconnect".
func NewConsole(server *Server, label string) *Console {
	if label == "" {
		label = defaultAdminLabel
	}
	return &Console{server: server, label: label}
}

// Run reads and dispatches commands until STOP is issued or the input ends.
// It blocks the calling goroutine while the server works in the background,
// and reports whether STOP was dispatched. An input that simply ends (stdin
// closed on a daemonized server) leaves the server running.
func (c *Console) Run(input io.Reader) bool {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if c.Dispatch(scanner.Text()) {
			return true
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Admin console input error: %v", err)
	}
	return false
}

// Dispatch executes a single operator command and reports whether it was
// STOP. Commands are case-insensitive; unrecognized input is logged and
// ignored.
func (c *Console) Dispatch(line string) bool {
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch {
	case command == "":
		// Blank line, nothing to do.

	case strings.EqualFold(command, "STOP"):
		if err := c.server.Shutdown(c.server.cfg.ShutdownTimeout()); err != nil {
			log.Printf("Shutdown did not drain cleanly: %v", err)
		}
		return true

	case strings.EqualFold(command, "SEND"):
		c.server.Registry().Broadcast(c.label+": "+rest, nil)
		log.Printf("Server message sent to all clients: %s", rest)

	case strings.EqualFold(command, "KICK"):
		if rest == "" {
			log.Println("KICK requires a username")
			break
		}
		if c.server.Registry().Kick(rest, ReasonAdministrator) {
			log.Printf("User %s was disconnected by the administrator", rest)
		} else {
			log.Printf("KICK: no session for user %q", rest)
		}

	default:
		log.Printf("Ignoring unrecognized admin command %q", command)
	}
	return false
}
