package protocol

import (
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// Decoder turns frames back into packets.
type Decoder struct {
	bundles  *BundleRegistry
	limits   frame.Limits
	observer Observer
}

func NewDecoder(bundles *BundleRegistry, limits frame.Limits, observer Observer) *Decoder {
	return &Decoder{bundles: bundles, limits: limits, observer: observer}
}

// Decode parses one complete frame. An unregistered bundle identifier yields
// a *WrappedPacket holding every remaining byte. A known bundle with no
// factory for the id yields nil, nil.
func (d *Decoder) Decode(data []byte) (Packet, error) {
	buf := wire.Wrap(data)
	identifier, err := frame.ReadIdentifier(buf)
	if err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}

	bundle, ok := d.bundles.Bundle(identifier)
	if !ok {
		id, err := frame.ReadID(buf)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode wrapped %q: %w", identifier, err)
		}
		wrapped := &WrappedPacket{Bundle: identifier, ID: id, Data: buf.ReadRemaining()}
		if d.observer != nil {
			d.observer.ObserveDecode(frame.Header{Bundle: identifier, ID: id}, len(data), true)
		}
		return wrapped, nil
	}

	id, err := frame.ReadID(buf)
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %q: %w", bundle.Identifier(), err)
	}
	h := frame.Header{Bundle: bundle.Identifier(), ID: id}
	if err := d.limits.CheckPayload(buf.Len()); err != nil {
		return nil, &PacketSizeError{Bundle: h.Bundle, ID: id, Size: buf.Len(), Limit: d.limits.MaxPayloadBytes}
	}

	p, err := bundle.CreatePacket(id, buf)
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", h, err)
	}
	if d.observer != nil {
		d.observer.ObserveDecode(h, len(data), false)
	}
	return p, nil
}
