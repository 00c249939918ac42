// Package chat defines the wire-level tokens shared by the server, the CLI
// client, and the test suite.
package chat

// The protocol is newline-delimited UTF-8 text over a reliable ordered
// stream. The first client line is "username:credential"; the first server
// line is always exactly one of the two login verdicts below. After a
// successful login every client line is relayed to the other sessions as
// "username: line".
const (
	// LoginOK is the server's acknowledgment of a successful login.
	LoginOK = "Login successful"

	// LoginFailed is sent when the credential line is malformed or does not
	// match the credential store. The transport is closed right after.
	LoginFailed = "Invalid username or password"

	// CredentialSeparator splits the login line into username and credential.
	CredentialSeparator = ":"
)

// Disconnect reasons, included in the final notice a session receives before
// its transport is closed.
const (
	ReasonAdministrator    = "administrator"
	ReasonServerShutdown   = "server shutdown"
	ReasonConnectionClosed = "connection closed"
)

// DisconnectNotice formats the best-effort farewell line sent to a session
// being terminated.
func DisconnectNotice(reason string) string {
	return "You have been disconnected (" + reason + ")"
}
