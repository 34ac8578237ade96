package wsconn

import (
	"context"
	"fmt"

	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/gorilla/websocket"
)

// Dial connects to a websocket endpoint and registers the client side of the
// connection with r. The caller runs Conn.Run to start reading.
func Dial(ctx context.Context, url string, r *session.Reassembler, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("wsconn: dial %s: %w", url, err)
	}
	c := newConn(ws, r, cfg)
	if err := c.open(); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return c, nil
}
