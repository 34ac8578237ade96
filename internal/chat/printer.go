package chat

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/wspackets/internal/events"
	"github.com/danmuck/wspackets/internal/protocol"
)

// Printer is the client-side listener. It writes incoming traffic as text
// lines and forwards pongs to Pongs when set.
type Printer struct {
	protocol.ListenerBase

	mu    sync.Mutex
	out   io.Writer
	Pongs chan *Pong
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) OnPing(n protocol.Networker, ping *Ping) error {
	return n.Send(&Pong{Nonce: ping.Nonce})
}

func (p *Printer) OnPong(_ protocol.Networker, pong *Pong) error {
	if p.Pongs != nil {
		select {
		case p.Pongs <- pong:
		default:
		}
	}
	return nil
}

func (p *Printer) OnChat(_ protocol.Networker, m *ChatMessage) error {
	at := time.UnixMilli(m.SentAt).Format(time.TimeOnly)
	return p.printf("[%s] %s: %s\n", at, m.From, m.Text)
}

func (p *Printer) OnJoined(_ protocol.Networker, j *Joined) error {
	return p.printf("* %s joined\n", j.Name)
}

func (p *Printer) printf(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, format, args...)
	return err
}

// Install registers the chat bundle, declares and registers l, and routes
// Joined events from bus to l when l is a PresenceListener.
func Install(bundles *protocol.BundleRegistry, listeners *protocol.ListenerRegistry, bus *events.Bus, l protocol.Listener) error {
	bundle, err := NewBundle()
	if err != nil {
		return err
	}
	if err := bundles.Register(bundle); err != nil {
		return err
	}
	if err := RegisterListener(listeners, l); err != nil {
		return err
	}
	if presence, ok := l.(PresenceListener); ok && bus != nil {
		SubscribePresence(bus, presence)
	}
	return nil
}
