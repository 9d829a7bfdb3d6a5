package history

import (
	"context"
	"time"

	"github.com/killallgit/podcast-dl/internal/models"
)

// Repository defines the data access interface for history records
type Repository interface {
	Create(ctx context.Context, record *models.EpisodeRecord) error
	List(ctx context.Context, limit int) ([]models.EpisodeRecord, error)
	ListByRun(ctx context.Context, runID string) ([]models.EpisodeRecord, error)
	Get(ctx context.Context, id uint) (*models.EpisodeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Recorder stores the outcome of one episode
type Recorder interface {
	Record(ctx context.Context, record *models.EpisodeRecord) error
}
