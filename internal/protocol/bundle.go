package protocol

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// NotFound is returned by id lookups for types a bundle does not contain.
const NotFound int32 = -1

// Bundle is an immutable, versioned set of packet types with dense ids.
type Bundle struct {
	identifier string
	version    int
	ids        map[reflect.Type]int32
	types      []reflect.Type
	factories  []Factory
}

func (b *Bundle) Identifier() string { return b.identifier }
func (b *Bundle) Version() int       { return b.version }
func (b *Bundle) Len() int           { return len(b.factories) }

// Types returns the packet types ordered by id.
func (b *Bundle) Types() []reflect.Type {
	out := make([]reflect.Type, len(b.types))
	copy(out, b.types)
	return out
}

// CreatePacket runs the factory registered for id. It returns nil, nil when
// no factory exists for id.
func (b *Bundle) CreatePacket(id int32, buf *wire.Buffer) (Packet, error) {
	if id < 0 || int(id) >= len(b.factories) {
		return nil, nil
	}
	return b.factories[id](buf)
}

// ID returns the id of p's concrete type or NotFound.
func (b *Bundle) ID(p Packet) int32 {
	if p == nil {
		return NotFound
	}
	return b.TypeID(reflect.TypeOf(p))
}

func (b *Bundle) TypeID(t reflect.Type) int32 {
	if b == nil || t == nil {
		return NotFound
	}
	id, ok := b.ids[t]
	if !ok {
		return NotFound
	}
	return id
}

func (b *Bundle) Contains(p Packet) bool           { return b.ID(p) != NotFound }
func (b *Bundle) ContainsType(t reflect.Type) bool { return b.TypeID(t) != NotFound }

func (b *Bundle) String() string {
	return fmt.Sprintf("%s@v%d(%d packets)", b.identifier, b.version, len(b.factories))
}

// NormalizeIdentifier lowercases and trims a bundle identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
