package wsconn

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// maxHeaderBytes is the largest frame header: uint16 length, identifier, id varint.
const maxHeaderBytes = 2 + math.MaxUint16 + 5

// Config shapes the gorilla connection on both ends.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// ReadChunk is the fragment size handed to the reassembler.
	ReadChunk    int
	ReadLimit    int64
	WriteTimeout time.Duration
	CheckOrigin  func(*http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		ReadChunk:       4 * 1024,
		ReadLimit:       frame.MaxPayloadBytes + maxHeaderBytes,
		WriteTimeout:    10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = d.ReadChunk
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// Conn adapts one gorilla websocket to session.Transport and drives the
// reassembler from its read loop.
type Conn struct {
	ws  *websocket.Conn
	r   *session.Reassembler
	cfg Config
	log zerolog.Logger

	networker protocol.Networker
	remote    string

	writeMu sync.Mutex
	pending io.WriteCloser

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, r *session.Reassembler, cfg Config) *Conn {
	c := &Conn{
		ws:     ws,
		r:      r,
		cfg:    cfg,
		log:    logging.New("wsconn"),
		remote: ws.RemoteAddr().String(),
		done:   make(chan struct{}),
	}
	ws.SetReadLimit(cfg.ReadLimit)
	ws.SetPingHandler(func(data string) error {
		err := r.OnPing(c, []byte(data))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	ws.SetCloseHandler(func(code int, _ string) error {
		msg := websocket.FormatCloseMessage(code, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cfg.WriteTimeout))
		return nil
	})
	return c
}

// open registers the connection with the reassembler.
func (c *Conn) open() error {
	n, err := c.r.OnOpen(c)
	if err != nil {
		return err
	}
	c.networker = n
	return nil
}

func (c *Conn) Networker() protocol.Networker { return c.networker }
func (c *Conn) RemoteAddr() string            { return c.remote }

// Done is closed once the read loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.done }

// SendBinary writes one fragment. A non-final fragment keeps the message
// writer open until the final fragment arrives. A failure in the middle of a
// message drops the socket, since the peer would otherwise see a truncated
// frame as complete.
func (c *Conn) SendBinary(data []byte, final bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return c.abortLocked(err)
	}
	if c.pending == nil {
		if final {
			return c.ws.WriteMessage(websocket.BinaryMessage, data)
		}
		w, err := c.ws.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return err
		}
		c.pending = w
	}
	if _, err := c.pending.Write(data); err != nil {
		return c.abortLocked(err)
	}
	if !final {
		return nil
	}
	if err := c.pending.Close(); err != nil {
		return c.abortLocked(err)
	}
	c.pending = nil
	return nil
}

// abortLocked forgets a half-written message and closes the socket when one
// was in progress. It returns err.
func (c *Conn) abortLocked(err error) error {
	if c.pending == nil {
		return err
	}
	c.pending = nil
	_ = c.ws.Close()
	c.log.Warn().Err(err).Str("remote", c.remote).Msg("wsconn.Conn.SendBinary aborted fragmented message")
	return err
}

func (c *Conn) SendClose(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	return c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
}

func (c *Conn) SendPong(payload []byte) error {
	return c.ws.WriteControl(websocket.PongMessage, payload, time.Now().Add(c.cfg.WriteTimeout))
}

// Close tears down the socket without a close handshake.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Run reads messages until the connection ends. Each binary message is
// handed to the reassembler in ReadChunk sized fragments. A dispatch error
// closes the connection with 1011.
func (c *Conn) Run() error {
	defer c.closeOnce.Do(func() { close(c.done) })
	defer c.ws.Close()
	for {
		mt, rd, err := c.ws.NextReader()
		if err != nil {
			return c.finish(err)
		}
		if mt != websocket.BinaryMessage {
			c.log.Warn().Str("remote", c.remote).Int("type", mt).Msg("wsconn.Conn.Run dropping non-binary message")
			continue
		}
		if err := c.readMessage(rd); err != nil {
			var dispatch *dispatchError
			if errors.As(err, &dispatch) {
				c.log.Warn().Err(dispatch.err).Str("remote", c.remote).Msg("wsconn.Conn.Run dispatch failed")
				_ = c.SendClose(websocket.CloseInternalServerErr, "dispatch failed")
				return c.r.OnError(c, dispatch.err)
			}
			return c.finish(err)
		}
	}
}

// dispatchError marks errors raised by decode or handle rather than the socket.
type dispatchError struct{ err error }

func (e *dispatchError) Error() string { return e.err.Error() }
func (e *dispatchError) Unwrap() error { return e.err }

// readMessage reads one step ahead so the final fragment is flagged as last.
func (c *Conn) readMessage(rd io.Reader) error {
	cur := make([]byte, c.cfg.ReadChunk)
	nxt := make([]byte, c.cfg.ReadChunk)
	n, err := io.ReadFull(rd, cur)
	for {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return c.deliver(cur[:n], true)
		}
		if err != nil {
			return err
		}
		m, nerr := io.ReadFull(rd, nxt)
		if errors.Is(nerr, io.EOF) {
			return c.deliver(cur[:n], true)
		}
		if nerr != nil && !errors.Is(nerr, io.ErrUnexpectedEOF) {
			return nerr
		}
		if err := c.deliver(cur[:n], false); err != nil {
			return err
		}
		cur, nxt = nxt, cur
		n, err = m, nerr
	}
}

func (c *Conn) deliver(fragment []byte, last bool) error {
	if err := c.r.OnBinary(c, fragment, last); err != nil {
		return &dispatchError{err: err}
	}
	return nil
}

func (c *Conn) finish(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		c.r.OnClose(c, closeErr.Code, closeErr.Text)
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			return nil
		}
		return fmt.Errorf("wsconn: closed by peer code=%d text=%q", closeErr.Code, closeErr.Text)
	}
	return c.r.OnError(c, err)
}

// truncateReason keeps close reasons within the 123 byte control payload.
func truncateReason(reason string) string {
	const limit = 123
	if len(reason) <= limit {
		return reason
	}
	return reason[:limit]
}
