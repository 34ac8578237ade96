package protocol

import (
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/wire"
)

const encodeBufferSize = 64

// Observer receives frame-level accounting from the encoder and decoder.
type Observer interface {
	ObserveEncode(h frame.Header, size int)
	ObserveDecode(h frame.Header, size int, wrapped bool)
}

// Encoder turns packets into frames using the registry to resolve headers.
type Encoder struct {
	bundles  *BundleRegistry
	limits   frame.Limits
	observer Observer
}

func NewEncoder(bundles *BundleRegistry, limits frame.Limits, observer Observer) *Encoder {
	return &Encoder{bundles: bundles, limits: limits, observer: observer}
}

// Encode writes the header for p followed by its payload. A WrappedPacket
// keeps its stored identifier and id.
func (e *Encoder) Encode(p Packet) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPacket
	}
	h, err := e.header(p)
	if err != nil {
		return nil, err
	}

	buf := wire.NewBuffer(encodeBufferSize)
	if err := frame.WriteHeader(buf, h); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", h, err)
	}
	start := buf.WriterIndex()
	if err := p.Write(buf); err != nil {
		return nil, fmt.Errorf("protocol: encode %s payload: %w", h, err)
	}
	size := buf.WriterIndex() - start
	if err := e.limits.CheckPayload(size); err != nil {
		return nil, &PacketSizeError{Bundle: h.Bundle, ID: h.ID, Size: size, Limit: e.limits.MaxPayloadBytes}
	}
	if e.observer != nil {
		e.observer.ObserveEncode(h, buf.Size())
	}
	return buf.Bytes(), nil
}

func (e *Encoder) header(p Packet) (frame.Header, error) {
	if w, ok := p.(*WrappedPacket); ok {
		return frame.Header{Bundle: w.Bundle, ID: w.ID}, nil
	}
	b, ok := e.bundles.BundleFor(p)
	if !ok {
		return frame.Header{}, fmt.Errorf("%w: %T is not registered in any bundle", ErrUnknownPacket, p)
	}
	id := b.ID(p)
	if id == NotFound {
		return frame.Header{}, fmt.Errorf("%w: %T has no id in %q", ErrUnknownPacket, p, b.Identifier())
	}
	return frame.Header{Bundle: b.Identifier(), ID: id}, nil
}
