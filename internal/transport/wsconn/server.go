package wsconn

import (
	"net/http"

	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler upgrades HTTP requests and serves each websocket until it closes.
type Handler struct {
	upgrader websocket.Upgrader
	r        *session.Reassembler
	cfg      Config
	log      zerolog.Logger
}

func NewHandler(r *session.Reassembler, cfg Config) *Handler {
	cfg = cfg.withDefaults()
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			CheckOrigin:       checkOrigin,
			EnableCompression: false,
		},
		r:   r,
		cfg: cfg,
		log: logging.New("wsconn"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", req.RemoteAddr).Msg("wsconn.Handler upgrade failed")
		return
	}
	c := newConn(ws, h.r, h.cfg)
	if err := c.open(); err != nil {
		h.log.Error().Err(err).Str("remote", c.remote).Msg("wsconn.Handler open failed")
		_ = ws.Close()
		return
	}
	h.log.Debug().Str("remote", c.remote).Str("conn", c.networker.ID()).Msg("wsconn.Handler serving")
	if err := c.Run(); err != nil {
		h.log.Warn().Err(err).Str("remote", c.remote).Msg("wsconn.Handler connection ended")
	}
}
