package protocol

import (
	"fmt"
	"reflect"

	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// Builder stages packet registrations for one bundle. Ids are assigned in
// the order packets are added.
type Builder struct {
	identifier string
	version    int
	ids        map[reflect.Type]int32
	types      []reflect.Type
	factories  []Factory
}

func NewBuilder(identifier string, version int) *Builder {
	return &Builder{
		identifier: NormalizeIdentifier(identifier),
		version:    version,
		ids:        make(map[reflect.Type]int32),
	}
}

// AddPacket assigns the next id to t. A failed add leaves the builder unchanged.
func (b *Builder) AddPacket(t reflect.Type, factory Factory) error {
	if t == nil {
		return fmt.Errorf("%w: nil packet type", ErrUnknownPacket)
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, t)
	}
	if prior, ok := b.ids[t]; ok {
		return fmt.Errorf("%w: %s already has id %d in %q", ErrDuplicatePacket, t, prior, b.identifier)
	}
	id := int32(len(b.factories))
	b.ids[t] = id
	b.types = append(b.types, t)
	b.factories = append(b.factories, factory)
	return nil
}

// Add registers the packet type produced by factory.
func Add[P Packet](b *Builder, factory func(buf *wire.Buffer) (P, error)) error {
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, reflect.TypeOf((*P)(nil)).Elem())
	}
	return b.AddPacket(reflect.TypeOf((*P)(nil)).Elem(), func(buf *wire.Buffer) (Packet, error) {
		p, err := factory(buf)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Build snapshots the staged registrations into an immutable bundle.
func (b *Builder) Build() (*Bundle, error) {
	if b.version < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, b.version)
	}
	if len(b.ids) != len(b.factories) || len(b.types) != len(b.factories) {
		return nil, fmt.Errorf("%w: ids=%d factories=%d", ErrInconsistentBundle, len(b.ids), len(b.factories))
	}
	ids := make(map[reflect.Type]int32, len(b.ids))
	for t, id := range b.ids {
		ids[t] = id
	}
	types := make([]reflect.Type, len(b.types))
	copy(types, b.types)
	factories := make([]Factory, len(b.factories))
	copy(factories, b.factories)
	return &Bundle{
		identifier: b.identifier,
		version:    b.version,
		ids:        ids,
		types:      types,
		factories:  factories,
	}, nil
}
