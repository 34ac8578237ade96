package protocol

import (
	"fmt"
	"reflect"
	"sync"
)

// Listener marks a type that can be stored in a ListenerRegistry. Concrete
// listeners satisfy it by embedding ListenerBase.
type Listener interface {
	isListener()
}

type ListenerBase struct{}

func (ListenerBase) isListener() {}

var (
	listenerType = reflect.TypeOf((*Listener)(nil)).Elem()
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
)

// ListenerRegistry maps exact listener types to instances. Registering a type
// also registers the same instance under every capability declared for it, so
// lookups stay exact-type and O(1).
type ListenerRegistry struct {
	mu           sync.RWMutex
	capabilities map[reflect.Type][]reflect.Type
	entries      map[reflect.Type]Listener
	// registered holds the entry set each Register call wrote, keyed by the
	// registered type. Unregister removes exactly that set.
	registered map[reflect.Type][]reflect.Type
}

func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		capabilities: make(map[reflect.Type][]reflect.Type),
		entries:      make(map[reflect.Type]Listener),
		registered:   make(map[reflect.Type][]reflect.Type),
	}
}

// Declare records the capability interfaces t exposes. Every parent must be
// an interface implemented by t. Repeated declarations append.
func (r *ListenerRegistry) Declare(t reflect.Type, parents ...reflect.Type) error {
	if t == nil || !t.Implements(listenerType) {
		return fmt.Errorf("%w: %v does not implement protocol.Listener", ErrInvalidListener, t)
	}
	for _, p := range parents {
		if p == nil || p.Kind() != reflect.Interface {
			return fmt.Errorf("%w: capability %v of %s is not an interface", ErrInvalidListener, p, t)
		}
		if !t.Implements(p) {
			return fmt.Errorf("%w: %s does not implement %s", ErrInvalidListener, t, p)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[t] = append(r.capabilities[t], parents...)
	return nil
}

// Register stores instance under t and its declared capabilities. Nothing is
// stored if any of those types is already occupied.
func (r *ListenerRegistry) Register(t reflect.Type, instance Listener) error {
	if t == nil || instance == nil {
		return fmt.Errorf("%w: nil type or instance", ErrInvalidListener)
	}
	if t == listenerType || t == anyType {
		return fmt.Errorf("%w: %s is the root marker, not a listener type", ErrInvalidListener, t)
	}
	if !reflect.TypeOf(instance).AssignableTo(t) {
		return fmt.Errorf("%w: %T is not a %s", ErrInvalidListener, instance, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	closure := r.closureLocked(t)
	for _, c := range closure {
		if prior, ok := r.entries[c]; ok {
			return fmt.Errorf("%w: %s is held by %T", ErrListenerExists, c, prior)
		}
	}
	for _, c := range closure {
		r.entries[c] = instance
	}
	r.registered[t] = closure
	return nil
}

// RegisterListener registers instance under its own dynamic type.
func (r *ListenerRegistry) RegisterListener(instance Listener) error {
	if instance == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidListener)
	}
	return r.Register(reflect.TypeOf(instance), instance)
}

// AutoRegister registers instance under its dynamic type unless that would
// collide. It reports whether the registration happened.
func (r *ListenerRegistry) AutoRegister(instance Listener) bool {
	return r.RegisterListener(instance) == nil
}

// Unregister returns the instance stored at t, or nil, and removes it. When t
// was passed to Register, every entry that call wrote is removed. When t is
// only a capability of another registration, just that entry goes.
// Capabilities declared after registration are not touched.
func (r *ListenerRegistry) Unregister(t reflect.Type) Listener {
	if t == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.entries[t]
	if set, ok := r.registered[t]; ok {
		for _, c := range set {
			delete(r.entries, c)
		}
		delete(r.registered, t)
		return removed
	}
	if removed == nil {
		return nil
	}
	delete(r.entries, t)
	for root, set := range r.registered {
		for i, c := range set {
			if c == t {
				r.registered[root] = append(set[:i:i], set[i+1:]...)
				break
			}
		}
	}
	return removed
}

func (r *ListenerRegistry) Get(t reflect.Type) Listener {
	if t == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[t]
}

func (r *ListenerRegistry) GetOrDefault(t reflect.Type, fallback Listener) Listener {
	if l := r.Get(t); l != nil {
		return l
	}
	return fallback
}

func (r *ListenerRegistry) IsRegistered(t reflect.Type) bool {
	return r.Get(t) != nil
}

// Len is the number of stored entries, counting each capability separately.
func (r *ListenerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Lookup fetches the listener stored under L.
func Lookup[L any](r *ListenerRegistry) (L, bool) {
	var zero L
	if r == nil {
		return zero, false
	}
	l, ok := r.Get(reflect.TypeOf((*L)(nil)).Elem()).(L)
	if !ok {
		return zero, false
	}
	return l, true
}

// closureLocked walks t and its declared capabilities depth first. The root
// marker and any are never part of the result.
func (r *ListenerRegistry) closureLocked(t reflect.Type) []reflect.Type {
	visited := make(map[reflect.Type]struct{})
	var out []reflect.Type
	var walk func(reflect.Type)
	walk = func(cur reflect.Type) {
		if cur == listenerType || cur == anyType {
			return
		}
		if _, seen := visited[cur]; seen {
			return
		}
		visited[cur] = struct{}{}
		out = append(out, cur)
		for _, p := range r.capabilities[cur] {
			walk(p)
		}
	}
	walk(t)
	return out
}
