// Package remoteclient implements the client side of the remote protocol:
// the connection manager, the state reconciler, the terminal holder (a
// vt10x-backed emulator grid), and the transport/backend abstractions that
// let UI code drive local and remote terminals through one interface.
package remoteclient

import "strings"

const remotePrefix = "remote"

// MakePrefixedID builds the canonical client-side form of a remote terminal
// id: remote:{connectionID}:{terminalID}. No other identifier form may
// begin with "remote:".
func MakePrefixedID(connectionID, terminalID string) string {
	return remotePrefix + ":" + connectionID + ":" + terminalID
}

// StripPrefix removes the remote:{connectionID}: prefix belonging to
// connectionID from id, returning the bare terminal id. If id does not
// carry that exact prefix, it is returned unchanged — this is a no-op, not
// an error.
func StripPrefix(id, connectionID string) string {
	prefix := remotePrefix + ":" + connectionID + ":"
	if strings.HasPrefix(id, prefix) {
		return id[len(prefix):]
	}
	return id
}

// IsRemoteTerminal reports whether id carries the remote: prefix at all
// (for any connection id).
func IsRemoteTerminal(id string) bool {
	return strings.HasPrefix(id, remotePrefix+":")
}
