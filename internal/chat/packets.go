// Package chat is the reference bundle carried by wspackets: ping/pong
// keepalives, chat messages and a presence event.
package chat

import (
	"errors"
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/wire"
)

// Bundle identity.
const (
	Identifier = "chat"
	Version    = 1

	JoinedEvent = "chat.joined"
)

var ErrNoListener = errors.New("chat: no listener registered")

// NewBundle builds chat v1. Ids: Ping 0, ChatMessage 1, Pong 2, Joined 3.
func NewBundle() (*protocol.Bundle, error) {
	b := protocol.NewBuilder(Identifier, Version)
	if err := protocol.Add(b, readPing); err != nil {
		return nil, err
	}
	if err := protocol.Add(b, readChatMessage); err != nil {
		return nil, err
	}
	if err := protocol.Add(b, readPong); err != nil {
		return nil, err
	}
	if err := protocol.Add(b, readJoined); err != nil {
		return nil, err
	}
	return b.Build()
}

// Ping asks the peer for a Pong with the same nonce.
type Ping struct {
	Nonce int64
}

func (p *Ping) Write(buf *wire.Buffer) error {
	buf.WriteInt64(p.Nonce)
	return nil
}

// Handle defers to a PingListener when one is registered, otherwise it
// answers directly.
func (p *Ping) Handle(n protocol.Networker) error {
	if l, ok := protocol.ListenerFor[PingListener](n); ok {
		return l.OnPing(n, p)
	}
	return n.Send(&Pong{Nonce: p.Nonce})
}

func readPing(buf *wire.Buffer) (*Ping, error) {
	nonce, err := buf.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("chat: read ping: %w", err)
	}
	return &Ping{Nonce: nonce}, nil
}

type Pong struct {
	Nonce int64
}

func (p *Pong) Write(buf *wire.Buffer) error {
	buf.WriteInt64(p.Nonce)
	return nil
}

func (p *Pong) Handle(n protocol.Networker) error {
	l, ok := protocol.ListenerFor[PingListener](n)
	if !ok {
		return nil
	}
	return l.OnPong(n, p)
}

func readPong(buf *wire.Buffer) (*Pong, error) {
	nonce, err := buf.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("chat: read pong: %w", err)
	}
	return &Pong{Nonce: nonce}, nil
}

// ChatMessage is one line of chat. SentAt is unix milliseconds.
type ChatMessage struct {
	From   string
	Text   string
	SentAt int64
}

func (m *ChatMessage) Write(buf *wire.Buffer) error {
	if err := buf.WriteString(m.From); err != nil {
		return err
	}
	if err := buf.WriteString(m.Text); err != nil {
		return err
	}
	buf.WriteInt64(m.SentAt)
	return nil
}

func (m *ChatMessage) Handle(n protocol.Networker) error {
	l, ok := protocol.ListenerFor[ChatListener](n)
	if !ok {
		return fmt.Errorf("%w: ChatListener", ErrNoListener)
	}
	return l.OnChat(n, m)
}

func readChatMessage(buf *wire.Buffer) (*ChatMessage, error) {
	from, err := buf.ReadString()
	if err != nil {
		return nil, fmt.Errorf("chat: read message sender: %w", err)
	}
	text, err := buf.ReadString()
	if err != nil {
		return nil, fmt.Errorf("chat: read message text: %w", err)
	}
	sentAt, err := buf.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("chat: read message time: %w", err)
	}
	return &ChatMessage{From: from, Text: text, SentAt: sentAt}, nil
}

// Joined announces a participant. It is an event packet and is handled by
// the environment's dispatcher.
type Joined struct {
	Name string
}

func (j *Joined) Write(buf *wire.Buffer) error { return buf.WriteString(j.Name) }
func (j *Joined) Handle(n protocol.Networker) error {
	return protocol.HandleEvent(n, j)
}
func (j *Joined) EventName() string { return JoinedEvent }

func readJoined(buf *wire.Buffer) (*Joined, error) {
	name, err := buf.ReadString()
	if err != nil {
		return nil, fmt.Errorf("chat: read joined name: %w", err)
	}
	return &Joined{Name: name}, nil
}
