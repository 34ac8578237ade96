package protocol

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// BundleRegistry is the directory of bundles keyed by normalized identifier.
// Lookups by packet type scan bundles in registration order.
type BundleRegistry struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
	order   []*Bundle
}

func NewBundleRegistry() *BundleRegistry {
	return &BundleRegistry{bundles: make(map[string]*Bundle)}
}

// ValidIdentifier reports whether identifier is acceptable after normalization.
func ValidIdentifier(identifier string) bool {
	return identifierPattern.MatchString(NormalizeIdentifier(identifier))
}

// Create starts a builder. The built bundle still has to be passed to Register.
func (r *BundleRegistry) Create(identifier string, version int) *Builder {
	return NewBuilder(identifier, version)
}

func (r *BundleRegistry) Register(b *Bundle) error {
	if b == nil {
		return ErrNilBundle
	}
	id := NormalizeIdentifier(b.identifier)
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must match [a-z0-9-_]+", ErrInvalidIdentifier, b.identifier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.bundles[id]; ok {
		return fmt.Errorf("%w: %q (registered v%d)", ErrDuplicateBundle, id, prior.version)
	}
	r.bundles[id] = b
	r.order = append(r.order, b)
	return nil
}

// MustRegister is Register for setup code that cannot continue on failure.
func (r *BundleRegistry) MustRegister(b *Bundle) *Bundle {
	if err := r.Register(b); err != nil {
		panic(err)
	}
	return b
}

func (r *BundleRegistry) Bundle(identifier string) (*Bundle, bool) {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[id]
	return b, ok
}

// BundleFor returns the first registered bundle containing p's concrete type.
func (r *BundleRegistry) BundleFor(p Packet) (*Bundle, bool) {
	if p == nil {
		return nil, false
	}
	return r.BundleForType(reflect.TypeOf(p))
}

// BundleForType is linear in the number of registered bundles.
func (r *BundleRegistry) BundleForType(t reflect.Type) (*Bundle, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.order {
		if b.ContainsType(t) {
			return b, true
		}
	}
	return nil, false
}

// Unregister removes and returns the bundle registered under identifier, or nil.
func (r *BundleRegistry) Unregister(identifier string) *Bundle {
	id := NormalizeIdentifier(identifier)
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[id]
	if !ok {
		return nil
	}
	delete(r.bundles, id)
	for i, cur := range r.order {
		if cur == b {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return b
}

func (r *BundleRegistry) UnregisterBundle(b *Bundle) *Bundle {
	if b == nil {
		return nil
	}
	return r.Unregister(b.identifier)
}

func (r *BundleRegistry) IsRegistered(identifier string) bool {
	_, ok := r.Bundle(identifier)
	return ok
}

// Bundles returns a snapshot ordered by registration.
func (r *BundleRegistry) Bundles() []*Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Bundle, len(r.order))
	copy(out, r.order)
	return out
}
