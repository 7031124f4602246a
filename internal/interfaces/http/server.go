package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/interfaces/http/handlers"
)

// Server is the gin-based HTTP binding described in §6A — a thin adapter
// with no business logic of its own.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the HTTP binding.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// Handlers bundles the route handlers the server wires up. Kept as a
// struct rather than a long constructor parameter list since the surface
// will keep growing with the API.
type Handlers struct {
	Chat         *handlers.ChatHandler
	Approval     *handlers.ApprovalHandler
	Conversation *handlers.ConversationHandler
	Catalog      *handlers.CatalogHandler
}

// NewServer builds the gin router and wraps it in an http.Server.
func NewServer(cfg Config, h Handlers, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", h.Chat.Chat)
		v1.POST("/approve", h.Approval.Approve)

		v1.GET("/conversations", h.Conversation.List)
		v1.GET("/conversations/:id", h.Conversation.Load)
		v1.DELETE("/conversations/:id", h.Conversation.Delete)

		v1.GET("/pending", h.Catalog.ListPending)
		v1.GET("/history", h.Catalog.ListHistory)
		v1.GET("/tools", h.Catalog.ListTools)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
