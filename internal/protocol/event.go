package protocol

import "fmt"

// Event is a packet whose handling is delegated to the environment's
// event dispatcher instead of a listener.
type Event interface {
	Packet
	EventName() string
}

type EventDispatcher interface {
	Dispatch(n Networker, e Event) error
}

// HandleEvent forwards e to the dispatcher of n's environment.
func HandleEvent(n Networker, e Event) error {
	if n == nil || n.Environment() == nil || !n.Environment().HasEvents() {
		return fmt.Errorf("%w: event %q", ErrNoEventDispatcher, e.EventName())
	}
	if err := n.Environment().Events().Dispatch(n, e); err != nil {
		return fmt.Errorf("protocol: dispatch event %q: %w", e.EventName(), err)
	}
	return nil
}
