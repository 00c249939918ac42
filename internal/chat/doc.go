// Package chat implements the core of the LineRelay chat service: the TCP
// accept loop, credential verification, the shared session registry, message
// broadcast, and the operator console.
//
// The implementation is organized into specialized files for configuration,
// transports, sessions, the registry, the server lifecycle, and the optional
// WebSocket gateway to keep the codebase maintainable and testable as the
// project grows.
package chat
