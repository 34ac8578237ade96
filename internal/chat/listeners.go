package chat

import (
	"reflect"

	"github.com/danmuck/wspackets/internal/events"
	"github.com/danmuck/wspackets/internal/protocol"
)

// PingListener receives keepalive traffic.
type PingListener interface {
	protocol.Listener
	OnPing(n protocol.Networker, p *Ping) error
	OnPong(n protocol.Networker, p *Pong) error
}

type ChatListener interface {
	protocol.Listener
	OnChat(n protocol.Networker, m *ChatMessage) error
}

type PresenceListener interface {
	protocol.Listener
	OnJoined(n protocol.Networker, j *Joined) error
}

var (
	PingListenerType     = reflect.TypeOf((*PingListener)(nil)).Elem()
	ChatListenerType     = reflect.TypeOf((*ChatListener)(nil)).Elem()
	PresenceListenerType = reflect.TypeOf((*PresenceListener)(nil)).Elem()
)

// DeclareListener records which chat capabilities the concrete type t
// exposes, so registering t also makes it reachable by each capability.
func DeclareListener(r *protocol.ListenerRegistry, t reflect.Type) error {
	var parents []reflect.Type
	for _, c := range []reflect.Type{PingListenerType, ChatListenerType, PresenceListenerType} {
		if t.Implements(c) {
			parents = append(parents, c)
		}
	}
	return r.Declare(t, parents...)
}

// RegisterListener declares and registers l under its concrete type.
func RegisterListener(r *protocol.ListenerRegistry, l protocol.Listener) error {
	t := reflect.TypeOf(l)
	if err := DeclareListener(r, t); err != nil {
		return err
	}
	return r.Register(t, l)
}

// SubscribePresence routes Joined events from bus to l.
func SubscribePresence(bus *events.Bus, l PresenceListener) func() {
	return bus.Subscribe(JoinedEvent, func(n protocol.Networker, e protocol.Event) error {
		j, ok := e.(*Joined)
		if !ok {
			return nil
		}
		return l.OnJoined(n, j)
	})
}
