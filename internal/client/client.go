// Package client is the dialing side of the chat service. It runs the same
// reassembler and networker stack as the server over one outbound socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/danmuck/wspackets/internal/chat"
	"github.com/danmuck/wspackets/internal/events"
	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/danmuck/wspackets/internal/transport/wsconn"
	"github.com/rs/zerolog"
)

var ErrPongTimeout = errors.New("client: no pong before deadline")

type Config struct {
	URL       string
	Session   session.Config
	Transport wsconn.Config
}

// Client holds one websocket connection to a chat server.
type Client struct {
	cfg     Config
	env     *protocol.Environment
	printer *chat.Printer
	r       *session.Reassembler
	conn    *wsconn.Conn
	log     zerolog.Logger
}

// Dial connects to cfg.URL, retrying with session backoff. Incoming chat
// traffic is printed to out.
func Dial(ctx context.Context, cfg Config, out io.Writer) (*Client, error) {
	cfg.Session = cfg.Session.WithDefaults()
	bundles := protocol.NewBundleRegistry()
	listeners := protocol.NewListenerRegistry()
	bus := events.NewBus()
	env, err := protocol.NewEnvironment(bundles, listeners, bus)
	if err != nil {
		return nil, err
	}
	printer := chat.NewPrinter(out)
	printer.Pongs = make(chan *chat.Pong, 8)
	if err := chat.Install(bundles, listeners, bus, printer); err != nil {
		return nil, err
	}
	r, err := session.NewReassembler(env, cfg.Session, session.WithLogger(logging.New("client.session")))
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, env: env, printer: printer, r: r, log: logging.New("client")}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	err = session.Retry(ctx, cfg.Session.Backoff, cfg.Session.DialAttempts, rng, func(attempt int) error {
		conn, err := wsconn.Dial(ctx, cfg.URL, r, cfg.Transport)
		if err != nil {
			c.log.Debug().Err(err).Int("attempt", attempt).Msg("client.Dial retrying")
			return err
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("url", cfg.URL).Str("conn", c.conn.Networker().ID()).Msg("client.Dial connected")
	return c, nil
}

func (c *Client) Networker() protocol.Networker      { return c.conn.Networker() }
func (c *Client) Environment() *protocol.Environment { return c.env }

// Run reads until the connection closes.
func (c *Client) Run() error { return c.conn.Run() }

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} { return c.conn.Done() }

func (c *Client) Send(p protocol.Packet) error { return c.conn.Networker().Send(p) }

func (c *Client) Join(name string) error {
	return c.Send(&chat.Joined{Name: name})
}

func (c *Client) Say(from, text string) error {
	return c.Send(&chat.ChatMessage{From: from, Text: text, SentAt: time.Now().UnixMilli()})
}

// Ping sends a Ping and waits for the matching Pong. Run must be active.
func (c *Client) Ping(ctx context.Context, nonce int64) (time.Duration, error) {
	start := time.Now()
	if err := c.Send(&chat.Ping{Nonce: nonce}); err != nil {
		return 0, err
	}
	for {
		select {
		case pong := <-c.printer.Pongs:
			if pong.Nonce == nonce {
				return time.Since(start), nil
			}
		case <-c.conn.Done():
			return 0, fmt.Errorf("client: connection closed while waiting for pong %d", nonce)
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", ErrPongTimeout, ctx.Err())
		}
	}
}

// Close sends a normal close frame. Run returns once the peer answers.
func (c *Client) Close() error {
	return c.conn.Networker().Disconnect()
}
