package chat

import (
	"bytes"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/wspackets/internal/events"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeNetworker struct {
	id   string
	env  *protocol.Environment
	mu   sync.Mutex
	sent []protocol.Packet
	fail error
}

func (f *fakeNetworker) Send(p protocol.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, p)
	return nil
}
func (f *fakeNetworker) Disconnect() error                      { return nil }
func (f *fakeNetworker) DisconnectWithReason(int, string) error { return nil }
func (f *fakeNetworker) ID() string                             { return f.id }
func (f *fakeNetworker) Environment() *protocol.Environment     { return f.env }
func (f *fakeNetworker) RemoteAddr() string                     { return "fake:" + f.id }

func (f *fakeNetworker) packets() []protocol.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Packet(nil), f.sent...)
}

func newEnv(t *testing.T, l protocol.Listener) (*protocol.Environment, *events.Bus) {
	t.Helper()
	bundles := protocol.NewBundleRegistry()
	listeners := protocol.NewListenerRegistry()
	bus := events.NewBus()
	require.NoError(t, Install(bundles, listeners, bus, l))
	env, err := protocol.NewEnvironment(bundles, listeners, bus)
	require.NoError(t, err)
	return env, bus
}

func TestBundleLayout(t *testing.T) {
	testlog.Start(t)
	b, err := NewBundle()
	require.NoError(t, err)
	require.Equal(t, Identifier, b.Identifier())
	require.Equal(t, Version, b.Version())
	require.Equal(t, int32(0), b.ID(&Ping{}))
	require.Equal(t, int32(1), b.TypeID(reflect.TypeOf((**ChatMessage)(nil)).Elem()))
	require.Equal(t, int32(2), b.ID(&Pong{}))
	require.Equal(t, int32(3), b.ID(&Joined{}))
}

func TestPingEncodesAsChatScenario(t *testing.T) {
	testlog.Start(t)
	env, _ := newEnv(t, NewPrinter(&bytes.Buffer{}))
	enc := protocol.NewEncoder(env.Bundles(), frame.DefaultLimits(), nil)
	dec := protocol.NewDecoder(env.Bundles(), frame.DefaultLimits(), nil)

	data, err := enc.Encode(&Ping{Nonce: 5})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x04, 'c', 'h', 'a', 't', 0x00}, data[:7])

	out, err := dec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, &Ping{Nonce: 5}, out)

	msg := &ChatMessage{From: "ana", Text: "olá", SentAt: 1700000000000}
	data, err = enc.Encode(msg)
	require.NoError(t, err)
	out, err = dec.Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(msg, out); diff != "" {
		t.Fatalf("chat message diff (-want +got):\n%s", diff)
	}
}

func TestPingWithoutListenerRepliesPong(t *testing.T) {
	testlog.Start(t)
	env, err := protocol.NewEnvironment(protocol.NewBundleRegistry(), protocol.NewListenerRegistry(), nil)
	require.NoError(t, err)
	n := &fakeNetworker{id: "a", env: env}
	require.NoError(t, (&Ping{Nonce: 42}).Handle(n))
	require.Equal(t, []protocol.Packet{&Pong{Nonce: 42}}, n.packets())

	require.NoError(t, (&Pong{Nonce: 1}).Handle(n))
	require.ErrorIs(t, (&ChatMessage{Text: "x"}).Handle(n), ErrNoListener)
	require.ErrorIs(t, (&Joined{Name: "ana"}).Handle(n), protocol.ErrNoEventDispatcher)
}

func TestHubRelaysChatAndPresence(t *testing.T) {
	testlog.Start(t)
	hub, err := NewHub(2)
	require.NoError(t, err)
	defer hub.Close()
	env, _ := newEnv(t, hub)

	for _, typ := range []reflect.Type{PingListenerType, ChatListenerType, PresenceListenerType} {
		require.Same(t, hub, env.Listeners().Get(typ))
	}

	ana := &fakeNetworker{id: "ana", env: env}
	bob := &fakeNetworker{id: "bob", env: env}
	cy := &fakeNetworker{id: "cy", env: env}
	for _, n := range []*fakeNetworker{ana, bob, cy} {
		hub.Connected(n)
	}
	require.Equal(t, []string{"ana", "bob", "cy"}, hub.Members())

	require.NoError(t, (&Joined{Name: "Ana"}).Handle(ana))
	require.Equal(t, "Ana", hub.Name("ana"))
	require.Empty(t, ana.packets())
	require.Equal(t, []protocol.Packet{&Joined{Name: "Ana"}}, bob.packets())

	require.NoError(t, (&ChatMessage{Text: "hi all", SentAt: 1}).Handle(ana))
	want := &ChatMessage{From: "Ana", Text: "hi all", SentAt: 1}
	for _, n := range []*fakeNetworker{ana, bob, cy} {
		got := n.packets()
		require.Equal(t, want, got[len(got)-1], "member %s", n.id)
	}

	require.NoError(t, (&Ping{Nonce: 9}).Handle(bob))
	got := bob.packets()
	require.Equal(t, &Pong{Nonce: 9}, got[len(got)-1])

	hub.Disconnected(cy)
	require.Equal(t, []string{"ana", "bob"}, hub.Members())
}

func TestHubBroadcastCollectsFailures(t *testing.T) {
	testlog.Start(t)
	hub, err := NewHub(4)
	require.NoError(t, err)
	defer hub.Close()
	env, _ := newEnv(t, hub)

	ok := &fakeNetworker{id: "ok", env: env}
	broken := &fakeNetworker{id: "broken", env: env, fail: errors.New("socket gone")}
	hub.Connected(ok)
	hub.Connected(broken)

	err = hub.Broadcast(&Pong{Nonce: 1}, "")
	require.ErrorContains(t, err, "send to broken")
	require.Len(t, ok.packets(), 1)
	require.NoError(t, (&ChatMessage{From: "x", Text: "y"}).Handle(ok), "relay failures stay off the sender")
}

func TestPrinterWritesLines(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	p := NewPrinter(&out)
	p.Pongs = make(chan *Pong, 1)
	env, _ := newEnv(t, p)
	n := &fakeNetworker{id: "srv", env: env}

	sentAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local).UnixMilli()
	require.NoError(t, (&ChatMessage{From: "ana", Text: "hello", SentAt: sentAt}).Handle(n))
	require.NoError(t, (&Joined{Name: "bob"}).Handle(n))
	require.Equal(t, "[12:30:00] ana: hello\n* bob joined\n", out.String())

	require.NoError(t, (&Pong{Nonce: 3}).Handle(n))
	require.Equal(t, &Pong{Nonce: 3}, <-p.Pongs)
	require.NoError(t, (&Ping{Nonce: 4}).Handle(n))
	require.Equal(t, []protocol.Packet{&Pong{Nonce: 4}}, n.packets())
}
