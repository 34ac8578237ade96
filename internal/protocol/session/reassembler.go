package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownConnection  = errors.New("session: unknown connection")
	ErrConnectionExists   = errors.New("session: connection already open")
	ErrConnectionClosed   = errors.New("session: connection closed")
	ErrUnregisteredPacket = errors.New("session: frame names no registered packet")
	ErrNilTransport       = errors.New("session: nil transport")
	ErrNilEnvironment     = errors.New("session: nil environment")
)

// Session error kinds reported to Metrics.
const (
	ErrorKindDecode    = "decode"
	ErrorKindHandle    = "handle"
	ErrorKindTransport = "transport"
)

// Metrics receives connection accounting.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	SessionError(kind string)
}

// Lifecycle is told when a networker starts and stops being reachable.
type Lifecycle interface {
	Connected(n protocol.Networker)
	Disconnected(n protocol.Networker)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()   {}
func (nopMetrics) ConnectionClosed()   {}
func (nopMetrics) SessionError(string) {}

type Option func(*Reassembler)

func WithObserver(o protocol.Observer) Option {
	return func(r *Reassembler) { r.observer = o }
}

func WithMetrics(m Metrics) Option {
	return func(r *Reassembler) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithLifecycle(l Lifecycle) Option {
	return func(r *Reassembler) { r.lifecycle = append(r.lifecycle, l) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reassembler) { r.log = l }
}

// Reassembler accumulates binary fragments per connection and dispatches each
// complete frame. Fragments of one connection must arrive sequentially;
// different connections may be driven concurrently.
type Reassembler struct {
	env       *protocol.Environment
	cfg       Config
	encoder   *protocol.Encoder
	decoder   *protocol.Decoder
	observer  protocol.Observer
	metrics   Metrics
	lifecycle []Lifecycle
	log       zerolog.Logger

	mu    sync.RWMutex
	conns map[Transport]*connection
}

func NewReassembler(env *protocol.Environment, cfg Config, opts ...Option) (*Reassembler, error) {
	if env == nil {
		return nil, ErrNilEnvironment
	}
	r := &Reassembler{
		env:     env,
		cfg:     cfg.WithDefaults(),
		metrics: nopMetrics{},
		log:     logging.New("session"),
		conns:   make(map[Transport]*connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.encoder = protocol.NewEncoder(env.Bundles(), r.cfg.Limits, r.observer)
	r.decoder = protocol.NewDecoder(env.Bundles(), r.cfg.Limits, r.observer)
	return r, nil
}

func (r *Reassembler) Config() Config { return r.cfg }

// OnOpen creates the entry for t and returns its networker.
func (r *Reassembler) OnOpen(t Transport) (protocol.Networker, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	n := &networker{
		id:           uuid.NewString(),
		env:          r.env,
		transport:    t,
		encoder:      r.encoder,
		fragmentSize: r.cfg.FragmentSize,
	}
	r.mu.Lock()
	if _, ok := r.conns[t]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConnectionExists, t.RemoteAddr())
	}
	r.conns[t] = newConnection(t, n, r.cfg.InitialAccumulator)
	r.mu.Unlock()

	r.metrics.ConnectionOpened()
	r.log.Debug().Str("conn", n.id).Str("remote", t.RemoteAddr()).Msg("session.Reassembler.OnOpen")
	for _, l := range r.lifecycle {
		l.Connected(n)
	}
	return n, nil
}

// OnBinary appends fragment to the connection's accumulator. When last is
// set the accumulated bytes are decoded, the packet is handled and the
// accumulator is reset whatever the outcome.
func (r *Reassembler) OnBinary(t Transport, fragment []byte, last bool) error {
	c, ok := r.lookup(t)
	if !ok {
		return ErrUnknownConnection
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, c.networker.id)
	}
	c.appendLocked(fragment)
	if !last {
		return nil
	}
	defer c.resetLocked(r.cfg.InitialAccumulator, r.cfg.MaxRetainedAccumulator)
	return r.dispatchLocked(c)
}

func (r *Reassembler) dispatchLocked(c *connection) error {
	n := c.networker
	p, err := r.decoder.Decode(c.acc)
	if err != nil {
		r.metrics.SessionError(ErrorKindDecode)
		return fmt.Errorf("session: decode on %s: %w", n.id, err)
	}
	if p == nil {
		r.metrics.SessionError(ErrorKindDecode)
		return fmt.Errorf("%w: conn=%s size=%s", ErrUnregisteredPacket, n.id, humanize.IBytes(uint64(len(c.acc))))
	}
	r.log.Trace().
		Str("conn", n.id).
		Str("packet", fmt.Sprintf("%T", p)).
		Str("size", humanize.IBytes(uint64(len(c.acc)))).
		Msg("session.Reassembler.OnBinary dispatch")
	if err := p.Handle(n); err != nil {
		r.metrics.SessionError(ErrorKindHandle)
		return fmt.Errorf("session: handle %T on %s: %w", p, n.id, err)
	}
	return nil
}

// OnClose discards the entry for t.
func (r *Reassembler) OnClose(t Transport, code int, reason string) {
	c, ok := r.remove(t)
	if !ok {
		return
	}
	r.log.Debug().Str("conn", c.networker.id).Int("code", code).Str("reason", reason).Msg("session.Reassembler.OnClose")
	r.teardown(c)
}

// OnError discards the entry for t and returns err annotated with the
// connection id for the transport's error path.
func (r *Reassembler) OnError(t Transport, err error) error {
	r.metrics.SessionError(ErrorKindTransport)
	c, ok := r.remove(t)
	if !ok {
		return fmt.Errorf("session: transport error on unknown connection: %w", err)
	}
	r.log.Warn().Err(err).Str("conn", c.networker.id).Msg("session.Reassembler.OnError")
	r.teardown(c)
	return fmt.Errorf("session: connection %s: %w", c.networker.id, err)
}

// OnPing answers with a pong carrying the same payload.
func (r *Reassembler) OnPing(t Transport, payload []byte) error {
	if t == nil {
		return ErrNilTransport
	}
	return t.SendPong(payload)
}

func (r *Reassembler) Networker(t Transport) (protocol.Networker, bool) {
	c, ok := r.lookup(t)
	if !ok {
		return nil, false
	}
	return c.networker, true
}

func (r *Reassembler) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll sends a close frame on every open connection. Entries are removed
// as the transports report OnClose.
func (r *Reassembler) CloseAll(code int, reason string) error {
	r.mu.RLock()
	targets := make([]*networker, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c.networker)
	}
	r.mu.RUnlock()

	var result *multierror.Error
	for _, n := range targets {
		if err := n.DisconnectWithReason(code, reason); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.log.Info().Int("connections", len(targets)).Int("code", code).Msg("session.Reassembler.CloseAll")
	return result.ErrorOrNil()
}

func (r *Reassembler) lookup(t Transport) (*connection, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[t]
	return c, ok
}

func (r *Reassembler) remove(t Transport) (*connection, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[t]
	if ok {
		delete(r.conns, t)
	}
	return c, ok
}

func (r *Reassembler) teardown(c *connection) {
	c.mu.Lock()
	c.closed = true
	c.acc = nil
	c.mu.Unlock()
	r.metrics.ConnectionClosed()
	for _, l := range r.lifecycle {
		l.Disconnected(c.networker)
	}
}
