package server

import (
	"net/http"
	"time"

	"github.com/danmuck/wspackets/internal/transport/wsconn"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	ws := wsconn.NewHandler(s.r, s.cfg.Transport())
	router.GET(s.cfg.Path, gin.WrapH(ws))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"name":        s.cfg.Name,
			"uptime":      time.Since(s.started).String(),
			"connections": s.r.Connections(),
			"version":     Version,
		})
	})

	router.GET("/bundles", func(c *gin.Context) {
		bundles := s.env.Bundles().Bundles()
		out := make([]gin.H, 0, len(bundles))
		for _, b := range bundles {
			out = append(out, gin.H{
				"identifier": b.Identifier(),
				"version":    b.Version(),
				"packets":    b.Len(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"bundles": out})
	})

	router.GET("/members", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"members": s.hub.Members()})
	})

	if s.cfg.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}
