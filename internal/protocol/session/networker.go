package session

import (
	"fmt"
	"sync"

	"github.com/danmuck/wspackets/internal/protocol"
)

// networker is the protocol.Networker bound to one transport. Sends are
// serialized so fragments of different frames never interleave.
type networker struct {
	id           string
	env          *protocol.Environment
	transport    Transport
	encoder      *protocol.Encoder
	fragmentSize int

	sendMu sync.Mutex
}

func (n *networker) ID() string                         { return n.id }
func (n *networker) Environment() *protocol.Environment { return n.env }
func (n *networker) RemoteAddr() string                 { return n.transport.RemoteAddr() }
func (n *networker) Disconnect() error                  { return n.DisconnectWithReason(protocol.CloseNormal, "") }
func (n *networker) String() string                     { return fmt.Sprintf("networker(%s %s)", n.id, n.RemoteAddr()) }

// Send encodes p and returns once the transport has accepted every fragment.
func (n *networker) Send(p protocol.Packet) error {
	data, err := n.encoder.Encode(p)
	if err != nil {
		return err
	}
	n.sendMu.Lock()
	defer n.sendMu.Unlock()
	if n.fragmentSize <= 0 || len(data) <= n.fragmentSize {
		if err := n.transport.SendBinary(data, true); err != nil {
			return fmt.Errorf("session: send on %s: %w", n.id, err)
		}
		return nil
	}
	for off := 0; off < len(data); off += n.fragmentSize {
		end := min(off+n.fragmentSize, len(data))
		if err := n.transport.SendBinary(data[off:end], end == len(data)); err != nil {
			return fmt.Errorf("session: send fragment on %s: %w", n.id, err)
		}
	}
	return nil
}

func (n *networker) DisconnectWithReason(code int, reason string) error {
	if err := protocol.ValidateCloseCode(code); err != nil {
		return err
	}
	n.sendMu.Lock()
	defer n.sendMu.Unlock()
	if err := n.transport.SendClose(code, reason); err != nil {
		return fmt.Errorf("session: close %s: %w", n.id, err)
	}
	return nil
}
