package main

import (
	"context"
	"log/slog"
	"net/http"

	"levlyfy/internal/auth"
	"levlyfy/internal/httpapi"
	"levlyfy/internal/metrics"
	"levlyfy/pkg/logger"

	"github.com/gin-gonic/gin"
)

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func newRouter(log *slog.Logger, m *metrics.Metrics, h httpapi.Handlers, sess *auth.Session, health func(context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := health(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "loggedIn": sess.Token() != ""})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	h.Register(r, auth.RequireSession(sess))
	return r
}
