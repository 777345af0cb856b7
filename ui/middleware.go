package ui

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"goodsam/domain/core"
	"goodsam/internal/telemetry"
)

const requestIDKey = "request_id"

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(corsHeaders())
}

// requestLogger tags each request with an ID, logs it and counts it by
// route and status
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := core.NewAnalysisID()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id.String())
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		telemetry.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debug("[API] %s %s %s -> %d (%s)", id, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// corsHeaders lets the dashboard call the API from another origin
func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
