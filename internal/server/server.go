// Package server exposes the thin HTTP surface: the graduation webhook,
// health and status probes, and Prometheus metrics. Request/response glue
// only; all semantics live in the engines.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fracpool/internal/governance"
	"fracpool/internal/lifecycle"
	"fracpool/internal/observability"
)

// Server wraps the HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// Config holds server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// WebhookToken guards the graduation webhook. Empty disables the check.
	WebhookToken string
}

// New builds the server and its routes.
func New(cfg Config, lc *lifecycle.Engine, gov *governance.Engine, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	h := &handlers{lifecycle: lc, governance: gov, logger: logger, webhookToken: cfg.WebhookToken}

	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/pools/:id", h.getPool)
		v1.GET("/pools/:id/proposals", h.listProposals)
		v1.POST("/webhooks/graduation", h.graduationWebhook)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
