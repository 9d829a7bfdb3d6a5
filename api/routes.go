package api

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/health"
	"github.com/killallgit/podcast-dl/api/history"
	"github.com/killallgit/podcast-dl/api/types"
	"github.com/killallgit/podcast-dl/api/version"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(engine *gin.Engine, deps *types.Dependencies, limiter *RateLimiter) {
	// Register public routes (no rate limiting)
	health.RegisterRoutes(engine, deps)
	version.RegisterRoutes(engine, deps)

	engine.NoRoute(NotFoundHandler())

	v1 := engine.Group("/api/v1")

	if deps.History != nil {
		historyGroup := v1.Group("/history")
		historyGroup.Use(limiter.Middleware())
		history.RegisterRoutes(historyGroup, deps)
	}
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(404, gin.H{
			"status": types.StatusError,
			"code":   "NOT_FOUND",
			"error":  "The requested endpoint was not found",
			"path":   c.Request.URL.Path,
		})
	}
}
