package version

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/types"
)

// Get handles version requests
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "podcast-dl",
			"version":     deps.Version,
			"description": "Read-only API over podcast-dl run history and transcripts",
			"status":      "running",
		})
	}
}
