package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/types"
)

// Get handles health check requests
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		database, healthy := getDatabaseStatus(c, deps)

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"version":   deps.Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  database,
		})
	}
}

// getDatabaseStatus reports the history database; a missing database is not unhealthy
func getDatabaseStatus(c *gin.Context, deps *types.Dependencies) (gin.H, bool) {
	if deps == nil || deps.DB == nil || deps.DB.DB == nil {
		return gin.H{"status": "not configured", "connected": false}, true
	}

	if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
		return gin.H{"status": "error", "connected": false, "error": err.Error()}, false
	}

	return gin.H{"status": "connected", "connected": true}, true
}
