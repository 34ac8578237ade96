package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// MaxPayloadBytes bounds the payload that follows a frame header.
const MaxPayloadBytes = 8 * 1024 * 1024

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrNegativeID      = errors.New("frame: negative packet id")
)

// Header is the routing prefix of every frame: the bundle identifier string
// followed by the packet id varint.
type Header struct {
	Bundle string
	ID     int32
}

func (h Header) String() string {
	return fmt.Sprintf("%s#%d", h.Bundle, h.ID)
}

// Limits constrains frame encode/decode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: MaxPayloadBytes,
	}
}

// CheckPayload reports whether a payload of n bytes fits the limits.
func (l Limits) CheckPayload(n int) error {
	if n > l.MaxPayloadBytes {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, l.MaxPayloadBytes)
	}
	return nil
}

func WriteHeader(buf *wire.Buffer, h Header) error {
	if h.ID < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeID, h.ID)
	}
	if err := buf.WriteString(h.Bundle); err != nil {
		return fmt.Errorf("frame: write bundle identifier: %w", err)
	}
	return buf.WriteVarInt(h.ID)
}

// ReadIdentifier consumes the bundle identifier only, leaving the id unread.
func ReadIdentifier(buf *wire.Buffer) (string, error) {
	s, err := buf.ReadString()
	if err != nil {
		return "", fmt.Errorf("frame: read bundle identifier: %w", err)
	}
	return s, nil
}

func ReadID(buf *wire.Buffer) (int32, error) {
	id, err := buf.ReadVarInt()
	if err != nil {
		return 0, fmt.Errorf("frame: read packet id: %w", err)
	}
	return id, nil
}

func ReadHeader(buf *wire.Buffer) (Header, error) {
	bundle, err := ReadIdentifier(buf)
	if err != nil {
		return Header{}, err
	}
	id, err := ReadID(buf)
	if err != nil {
		return Header{}, err
	}
	return Header{Bundle: bundle, ID: id}, nil
}
