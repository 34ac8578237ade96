package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/wspackets/internal/protocol/wire"
	"github.com/danmuck/wspackets/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingListener interface {
	Listener
	OnPing(seq int64)
}

type chatListener interface {
	Listener
	OnChat(from, text string)
}

// roomListener extends chatListener so the walk reaches chatListener twice.
type roomListener interface {
	chatListener
	Room() string
}

type dualListener struct {
	ListenerBase
	pings []int64
}

func (d *dualListener) OnPing(seq int64)      { d.pings = append(d.pings, seq) }
func (d *dualListener) OnChat(string, string) {}
func (d *dualListener) Room() string          { return "lobby" }

type otherChat struct{ ListenerBase }

func (otherChat) OnChat(string, string) {}

var (
	pingListenerType = reflect.TypeOf((*pingListener)(nil)).Elem()
	chatListenerType = reflect.TypeOf((*chatListener)(nil)).Elem()
	roomListenerType = reflect.TypeOf((*roomListener)(nil)).Elem()
	dualListenerType = reflect.TypeOf((**dualListener)(nil)).Elem()
)

func declaredRegistry(t *testing.T) *ListenerRegistry {
	t.Helper()
	r := NewListenerRegistry()
	require.NoError(t, r.Declare(roomListenerType, chatListenerType))
	require.NoError(t, r.Declare(dualListenerType, pingListenerType, chatListenerType, roomListenerType, listenerType))
	return r
}

func TestListenerRegistrationPropagates(t *testing.T) {
	testlog.Start(t)
	r := declaredRegistry(t)
	d := &dualListener{}
	require.NoError(t, r.Register(dualListenerType, d))

	for _, typ := range []reflect.Type{dualListenerType, pingListenerType, chatListenerType, roomListenerType} {
		assert.Same(t, d, r.Get(typ), "lookup %s", typ)
	}
	assert.Nil(t, r.Get(listenerType))
	assert.Nil(t, r.Get(anyType))
	assert.Equal(t, 4, r.Len())

	ping, ok := Lookup[pingListener](r)
	require.True(t, ok)
	ping.OnPing(3)
	assert.Equal(t, []int64{3}, d.pings)

	removed := r.Unregister(dualListenerType)
	assert.Same(t, d, removed)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsRegistered(chatListenerType))
}

func TestListenerRegistrationIsAllOrNothing(t *testing.T) {
	testlog.Start(t)
	r := declaredRegistry(t)
	other := otherChat{}
	require.NoError(t, r.Register(chatListenerType, other))

	err := r.Register(dualListenerType, &dualListener{})
	if !errors.Is(err, ErrListenerExists) {
		t.Fatalf("expected ErrListenerExists, got %v", err)
	}
	assert.Nil(t, r.Get(dualListenerType))
	assert.Nil(t, r.Get(pingListenerType))
	assert.Equal(t, other, r.Get(chatListenerType))
	assert.False(t, r.AutoRegister(&dualListener{}))

	assert.Equal(t, other, r.Unregister(chatListenerType))
	assert.True(t, r.AutoRegister(&dualListener{}))
	assert.True(t, r.IsRegistered(pingListenerType))
}

func TestListenerUnregisterRemovesOnlyItsOwnEntries(t *testing.T) {
	testlog.Start(t)
	r := declaredRegistry(t)
	otherType := reflect.TypeOf((*otherChat)(nil)).Elem()
	require.NoError(t, r.Register(otherType, otherChat{}))
	d := &dualListener{}
	require.NoError(t, r.Register(dualListenerType, d))

	// chatListener is held by d; declaring it for otherChat now must not let
	// otherChat's removal take it.
	require.NoError(t, r.Declare(otherType, chatListenerType))
	assert.Equal(t, otherChat{}, r.Unregister(otherType))
	assert.Nil(t, r.Get(otherType))
	assert.Same(t, d, r.Get(chatListenerType))
	assert.Equal(t, 4, r.Len())

	assert.Same(t, d, r.Unregister(pingListenerType))
	assert.Nil(t, r.Get(pingListenerType))
	assert.Same(t, d, r.Get(roomListenerType))

	assert.Same(t, d, r.Unregister(dualListenerType))
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Unregister(dualListenerType))
}

func TestListenerGetOrDefault(t *testing.T) {
	testlog.Start(t)
	r := NewListenerRegistry()
	fallback := otherChat{}
	assert.Equal(t, fallback, r.GetOrDefault(chatListenerType, fallback))
	assert.Nil(t, r.Unregister(chatListenerType))
	_, ok := Lookup[chatListener](r)
	assert.False(t, ok)
	_, ok = Lookup[chatListener](nil)
	assert.False(t, ok)
}

func TestListenerDeclareAndRegisterValidation(t *testing.T) {
	testlog.Start(t)
	r := NewListenerRegistry()
	require.ErrorIs(t, r.Declare(reflect.TypeOf((*string)(nil)).Elem()), ErrInvalidListener)
	require.ErrorIs(t, r.Declare(dualListenerType, reflect.TypeOf((*dualListener)(nil)).Elem()), ErrInvalidListener)
	require.ErrorIs(t, r.Declare(reflect.TypeOf((*otherChat)(nil)).Elem(), pingListenerType), ErrInvalidListener)
	require.ErrorIs(t, r.Register(pingListenerType, otherChat{}), ErrInvalidListener)
	require.ErrorIs(t, r.Register(pingListenerType, nil), ErrInvalidListener)
	require.ErrorIs(t, r.RegisterListener(nil), ErrInvalidListener)
	require.ErrorIs(t, r.Register(listenerType, otherChat{}), ErrInvalidListener)
	require.ErrorIs(t, r.Register(anyType, otherChat{}), ErrInvalidListener)
	assert.Equal(t, 0, r.Len())
}

type stubNetworker struct {
	env  *Environment
	sent []Packet
}

func (s *stubNetworker) Send(p Packet) error                    { s.sent = append(s.sent, p); return nil }
func (s *stubNetworker) Disconnect() error                      { return nil }
func (s *stubNetworker) DisconnectWithReason(int, string) error { return nil }
func (s *stubNetworker) ID() string                             { return "stub" }
func (s *stubNetworker) Environment() *Environment              { return s.env }
func (s *stubNetworker) RemoteAddr() string                     { return "pipe" }

type joinEvent struct{ Name string }

func (e *joinEvent) Write(buf *wire.Buffer) error { return buf.WriteString(e.Name) }
func (e *joinEvent) Handle(n Networker) error     { return HandleEvent(n, e) }
func (e *joinEvent) EventName() string            { return "join" }

type recordingDispatcher struct {
	seen []string
	err  error
}

func (d *recordingDispatcher) Dispatch(n Networker, e Event) error {
	d.seen = append(d.seen, n.ID()+":"+e.EventName())
	return d.err
}

func TestEnvironmentAndEvents(t *testing.T) {
	testlog.Start(t)
	_, err := NewEnvironment(nil, NewListenerRegistry(), nil)
	require.ErrorIs(t, err, ErrNilRegistry)
	_, err = NewEnvironment(NewBundleRegistry(), nil, nil)
	require.ErrorIs(t, err, ErrNilRegistry)

	bare, err := NewEnvironment(NewBundleRegistry(), NewListenerRegistry(), nil)
	require.NoError(t, err)
	require.False(t, bare.HasEvents())
	require.ErrorIs(t, (&joinEvent{Name: "ana"}).Handle(&stubNetworker{env: bare}), ErrNoEventDispatcher)

	dispatcher := &recordingDispatcher{}
	env, err := NewEnvironment(NewBundleRegistry(), NewListenerRegistry(), dispatcher)
	require.NoError(t, err)
	n := &stubNetworker{env: env}
	require.NoError(t, (&joinEvent{Name: "ana"}).Handle(n))
	require.Equal(t, []string{"stub:join"}, dispatcher.seen)

	dispatcher.err = errors.New("bus closed")
	err = (&joinEvent{Name: "ana"}).Handle(n)
	require.ErrorContains(t, err, `dispatch event "join"`)

	require.NoError(t, env.Listeners().Register(chatListenerType, otherChat{}))
	l, ok := ListenerFor[chatListener](n)
	require.True(t, ok)
	require.Equal(t, otherChat{}, l)
}

func TestValidateCloseCode(t *testing.T) {
	testlog.Start(t)
	for _, code := range []int{CloseCodeMin, CloseGoingAway, 4000, CloseCodeMax} {
		require.NoError(t, ValidateCloseCode(code))
	}
	for _, code := range []int{0, 999, 5000} {
		require.ErrorIs(t, ValidateCloseCode(code), ErrInvalidCloseCode)
	}
}
