package protocol

import (
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// Packet is one unit of application data. It serializes its own payload and
// decides what happens when it arrives on a connection.
type Packet interface {
	Write(buf *wire.Buffer) error
	Handle(n Networker) error
}

// Factory rebuilds a packet from the payload that follows the frame header.
type Factory func(buf *wire.Buffer) (Packet, error)

// WrappedPacket carries a frame whose bundle identifier is not registered.
// It re-emits the stored bytes on Write and always fails on Handle.
type WrappedPacket struct {
	Bundle string
	ID     int32
	Data   []byte
}

func (p *WrappedPacket) Write(buf *wire.Buffer) error {
	_, err := buf.Write(p.Data)
	return err
}

func (p *WrappedPacket) Handle(Networker) error {
	return fmt.Errorf("%w: wrapped bundle=%q id=%d", ErrUnhandledPacket, p.Bundle, p.ID)
}

func (p *WrappedPacket) String() string {
	return fmt.Sprintf("WrappedPacket{bundle=%q id=%d len=%d}", p.Bundle, p.ID, len(p.Data))
}
