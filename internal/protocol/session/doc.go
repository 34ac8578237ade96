// Package session owns per-connection state between a transport adapter and
// the protocol codec.
//
// Ownership boundary:
// - fragment reassembly and dispatch (Reassembler)
// - the Networker handed to packet handlers
// - session defaults and reconnect backoff
package session
