package internal

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes registers all API endpoints on the gin router.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(requestIDMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path != "/metrics" {
			Logf(INFO, "API", "%s %s", c.Request.Method, c.Request.URL.Path)
		}
		c.Next()
	})

	r.GET("/api/extract", s.rateLimitMiddleware(), s.extractHandler)
	r.GET("/api/preview", s.previewHandler)
	r.HEAD("/api/preview", s.previewHandler)
	r.GET("/api/download", s.downloadHandler)
	r.GET("/api/history", s.historyHandler)
	r.GET("/api/health", s.healthHandler)
	r.GET("/ws/activity", s.hub.Handler)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rate.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("requestId", id)
		c.Next()
	}
}
