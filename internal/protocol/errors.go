package protocol

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	ErrDuplicatePacket    = errors.New("protocol: packet type already registered in bundle")
	ErrDuplicateBundle    = errors.New("protocol: bundle identifier already registered")
	ErrInvalidIdentifier  = errors.New("protocol: invalid bundle identifier")
	ErrInvalidVersion     = errors.New("protocol: invalid bundle version")
	ErrInconsistentBundle = errors.New("protocol: bundle ids and factories disagree")
	ErrNilBundle          = errors.New("protocol: nil bundle")
	ErrNilFactory         = errors.New("protocol: nil packet factory")
	ErrNilPacket          = errors.New("protocol: nil packet")
	ErrUnknownPacket      = errors.New("protocol: unknown packet")
	ErrPacketTooLarge     = errors.New("protocol: packet too large")
	ErrUnhandledPacket    = errors.New("protocol: unsupported operation: packet cannot be handled")
	ErrListenerExists     = errors.New("protocol: listener already registered")
	ErrInvalidListener    = errors.New("protocol: invalid listener")
	ErrNoEventDispatcher  = errors.New("protocol: environment has no event dispatcher")
	ErrInvalidCloseCode   = errors.New("protocol: invalid close code")
	ErrNilRegistry        = errors.New("protocol: nil registry")
)

// PacketSizeError reports a payload that exceeds the frame limit.
type PacketSizeError struct {
	Bundle string
	ID     int32
	Size   int
	Limit  int
}

func (e *PacketSizeError) Error() string {
	return fmt.Sprintf("%v: bundle=%q id=%d size=%d (%s) limit=%d (%s)",
		ErrPacketTooLarge, e.Bundle, e.ID,
		e.Size, humanize.IBytes(uint64(e.Size)),
		e.Limit, humanize.IBytes(uint64(e.Limit)))
}

func (e *PacketSizeError) Unwrap() error { return ErrPacketTooLarge }
