// Package events provides the application event dispatcher exposed through
// protocol.Environment.
package events

import (
	"fmt"
	"sync"

	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// HandlerFunc receives one dispatched event.
type HandlerFunc func(n protocol.Networker, e protocol.Event) error

type subscription struct {
	id uint64
	fn HandlerFunc
}

// Bus fans events out to subscribers by event name. Handlers run
// synchronously in subscription order on the dispatching goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	log    zerolog.Logger
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]subscription),
		log:  logging.New("events"),
	}
}

// Subscribe registers fn for name and returns a function that removes it.
func (b *Bus) Subscribe(name string, fn HandlerFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})
	return func() { b.remove(name, id) }
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.subs[name]
	for i, s := range cur {
		if s.id == id {
			b.subs[name] = append(cur[:i:i], cur[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Subscribers returns the number of handlers registered for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Dispatch runs every handler for the event's name. All handlers run even if
// some fail; their errors are combined.
func (b *Bus) Dispatch(n protocol.Networker, e protocol.Event) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[e.EventName()]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.log.Debug().Str("event", e.EventName()).Msg("events.Bus.Dispatch no subscribers")
		return nil
	}
	var result *multierror.Error
	for _, s := range subs {
		if err := s.fn(n, e); err != nil {
			result = multierror.Append(result, fmt.Errorf("subscriber %d: %w", s.id, err))
		}
	}
	return result.ErrorOrNil()
}
