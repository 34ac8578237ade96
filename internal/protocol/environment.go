package protocol

import "fmt"

const (
	CloseNormal    = 1000
	CloseGoingAway = 1001

	// Bounds accepted by DisconnectWithReason.
	CloseCodeMin = 1000
	CloseCodeMax = 4999
)

// Networker is the per-connection handle a packet sees while it is handled.
// Send blocks until the transport has accepted the frame.
type Networker interface {
	Send(p Packet) error
	Disconnect() error
	DisconnectWithReason(code int, reason string) error
	ID() string
	Environment() *Environment
	RemoteAddr() string
}

// Environment is the process context shared by every connection.
type Environment struct {
	bundles   *BundleRegistry
	listeners *ListenerRegistry
	events    EventDispatcher
}

// NewEnvironment requires both registries; events may be nil.
func NewEnvironment(bundles *BundleRegistry, listeners *ListenerRegistry, events EventDispatcher) (*Environment, error) {
	if bundles == nil {
		return nil, fmt.Errorf("%w: bundle registry", ErrNilRegistry)
	}
	if listeners == nil {
		return nil, fmt.Errorf("%w: listener registry", ErrNilRegistry)
	}
	return &Environment{bundles: bundles, listeners: listeners, events: events}, nil
}

func (e *Environment) Bundles() *BundleRegistry     { return e.bundles }
func (e *Environment) Listeners() *ListenerRegistry { return e.listeners }
func (e *Environment) Events() EventDispatcher      { return e.events }
func (e *Environment) HasEvents() bool              { return e.events != nil }

// ListenerFor looks up the listener L in the networker's environment.
func ListenerFor[L any](n Networker) (L, bool) {
	var zero L
	if n == nil || n.Environment() == nil {
		return zero, false
	}
	return Lookup[L](n.Environment().Listeners())
}

// ValidateCloseCode rejects codes outside the application-usable range.
func ValidateCloseCode(code int) error {
	if code < CloseCodeMin || code > CloseCodeMax {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidCloseCode, code, CloseCodeMin, CloseCodeMax)
	}
	return nil
}
