// Package server hosts the chat packet service over HTTP: a gin engine with
// the websocket endpoint, health and metrics routes, and graceful shutdown.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/wspackets/internal/chat"
	"github.com/danmuck/wspackets/internal/config"
	"github.com/danmuck/wspackets/internal/events"
	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/observability"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

// Server owns the packet environment and the HTTP surface in front of it.
type Server struct {
	cfg     config.ServerConfig
	env     *protocol.Environment
	bus     *events.Bus
	hub     *chat.Hub
	r       *session.Reassembler
	router  *gin.Engine
	log     zerolog.Logger
	started time.Time
}

func New(cfg config.ServerConfig) (*Server, error) {
	if err := config.ValidateServerConfig(cfg); err != nil {
		return nil, err
	}
	bundles := protocol.NewBundleRegistry()
	listeners := protocol.NewListenerRegistry()
	bus := events.NewBus()
	env, err := protocol.NewEnvironment(bundles, listeners, bus)
	if err != nil {
		return nil, err
	}

	hub, err := chat.NewHub(cfg.BroadcastWorkers)
	if err != nil {
		return nil, fmt.Errorf("server: hub: %w", err)
	}
	if err := chat.Install(bundles, listeners, bus, hub); err != nil {
		hub.Close()
		return nil, fmt.Errorf("server: install chat: %w", err)
	}

	opts := []session.Option{
		session.WithLifecycle(hub),
		session.WithLogger(logging.New("session")),
	}
	if cfg.Metrics {
		m := observability.NewPacketMetrics()
		opts = append(opts, session.WithObserver(m), session.WithMetrics(m))
	}
	r, err := session.NewReassembler(env, cfg.Session(), opts...)
	if err != nil {
		hub.Close()
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		env:     env,
		bus:     bus,
		hub:     hub,
		r:       r,
		log:     logging.New("server"),
		started: time.Now(),
	}
	s.router = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(s.log))
	if s.cfg.Metrics {
		router.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	}
	if len(s.cfg.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.registerRoutes(router)
	return router
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (s *Server) Handler() http.Handler              { return s.router }
func (s *Server) Environment() *protocol.Environment { return s.env }
func (s *Server) Reassembler() *session.Reassembler  { return s.r }
func (s *Server) Hub() *chat.Hub                     { return s.hub }
func (s *Server) Config() config.ServerConfig        { return s.cfg }
