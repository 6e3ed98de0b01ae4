package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"screenlink/internal/auth"
	"screenlink/internal/coordinator"
	"screenlink/internal/handler"
	"screenlink/internal/middleware"
)

type Deps struct {
	Coordinator *coordinator.Coordinator
	// TokenConfig guards /v1/admin; an empty secret leaves it unmounted.
	TokenConfig    auth.TokenConfig
	ConnectLimiter *middleware.RateLimiter
	QueueSize      int
	Logger         *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/metrics", gin.WrapH(deps.Coordinator.Metrics().Handler()))

	wsHandler := &handler.SignalingHandler{Coordinator: deps.Coordinator, QueueSize: deps.QueueSize, Logger: logger}
	if deps.ConnectLimiter != nil {
		r.GET("/ws", middleware.RateLimitMiddleware(deps.ConnectLimiter), wsHandler.Serve)
	} else {
		r.GET("/ws", wsHandler.Serve)
	}

	if deps.TokenConfig.Secret != "" {
		adminHandler := &handler.AdminHandler{Coordinator: deps.Coordinator}
		admin := r.Group("/v1/admin")
		admin.Use(middleware.RequireAdmin(deps.TokenConfig))
		admin.GET("/sessions", adminHandler.Sessions)
		admin.GET("/metrics", adminHandler.Metrics)
	}

	return r
}
