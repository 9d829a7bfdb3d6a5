package types

import (
	"context"

	"github.com/killallgit/podcast-dl/internal/database"
	"github.com/killallgit/podcast-dl/internal/models"
)

// HistoryReader is the read side of the history service
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]models.EpisodeRecord, error)
	Run(ctx context.Context, runID string) ([]models.EpisodeRecord, error)
	Get(ctx context.Context, id uint) (*models.EpisodeRecord, error)
}

// Dependencies holds all the dependencies needed by handlers
type Dependencies struct {
	DB      *database.DB
	History HistoryReader
	// Version is reported by the root endpoint
	Version string
}
