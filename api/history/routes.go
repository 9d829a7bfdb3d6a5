package history

import (
	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/types"
)

// RegisterRoutes registers history routes on a /history group
func RegisterRoutes(router *gin.RouterGroup, deps *types.Dependencies) {
	router.GET("", List(deps))
	router.GET("/:id", Get(deps))
	router.GET("/:id/transcript", Transcript(deps))
}
