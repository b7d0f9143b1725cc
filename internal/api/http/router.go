package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/api/middleware"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/monitoring"
	"github.com/Yahook/mcp-terminal/internal/shared/id"
)

const requestIDHeader = "X-Request-ID"

// RouterConfig selects the optional middleware.
type RouterConfig struct {
	RateLimit *middleware.RateLimitConfig
	CORS      middleware.CORSConfig
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLog(h.logger))
	if h.metrics != nil {
		router.Use(monitoring.Middleware(h.metrics))
	}
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.RequireJSON())
	h.upgrader = newUpgrader(cfg.CORS)
	if cfg.RateLimit != nil {
		router.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	router.GET("/health", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	router.GET("/tools", h.ListTools)
	router.POST("/tools/:id", h.CallTool)

	router.POST("/execute", h.Execute)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.CloseSession)
		sessions.POST("/:id/input", h.SendInput)
		sessions.GET("/:id/output", h.ReadOutput)
		sessions.GET("/:id/attach", h.Attach)
	}

	return router
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = id.NewRequestID().String()
		}
		c.Set(requestIDHeader, reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID(c)),
		)
	}
}
