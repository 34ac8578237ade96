package session

import "sync"

// Transport is the socket-facing half of a connection. Implementations are
// used as map keys and must be comparable, typically a pointer.
type Transport interface {
	// SendBinary writes one fragment; final marks the end of the message.
	SendBinary(data []byte, final bool) error
	SendClose(code int, reason string) error
	SendPong(payload []byte) error
	RemoteAddr() string
}

// connection is the reassembly entry for one live transport.
type connection struct {
	mu        sync.Mutex
	transport Transport
	networker *networker
	acc       []byte
	closed    bool
}

func newConnection(t Transport, n *networker, initial int) *connection {
	return &connection{
		transport: t,
		networker: n,
		acc:       make([]byte, 0, initial),
	}
}

// appendLocked grows the accumulator if needed, stores the grown buffer
// back on the entry, then appends fragment.
func (c *connection) appendLocked(fragment []byte) {
	c.acc = ensureCapacity(c.acc, len(fragment))
	c.acc = append(c.acc, fragment...)
}

// resetLocked empties the accumulator. Buffers above retain are replaced.
func (c *connection) resetLocked(initial, retain int) {
	if cap(c.acc) > retain {
		c.acc = make([]byte, 0, initial)
		return
	}
	c.acc = c.acc[:0]
}

// ensureCapacity returns buf unchanged when extra bytes fit, otherwise a new
// buffer holding a copy of buf. The new capacity is at least cap(buf)+extra
// and at least double the old one, so a message costs O(log n) copies.
func ensureCapacity(buf []byte, extra int) []byte {
	if cap(buf)-len(buf) >= extra {
		return buf
	}
	grown := make([]byte, len(buf), max(2*cap(buf), cap(buf)+extra))
	copy(grown, buf)
	return grown
}
