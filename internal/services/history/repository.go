package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/killallgit/podcast-dl/internal/models"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed Repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, record *models.EpisodeRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating history record: %w", err)
	}
	return nil
}

// List returns the newest records first
func (r *gormRepository) List(ctx context.Context, limit int) ([]models.EpisodeRecord, error) {
	var records []models.EpisodeRecord
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return records, nil
}

// ListByRun returns a run's records in processing order
func (r *gormRepository) ListByRun(ctx context.Context, runID string) ([]models.EpisodeRecord, error) {
	var records []models.EpisodeRecord
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing run %s: %w", runID, err)
	}
	return records, nil
}

func (r *gormRepository) Get(ctx context.Context, id uint) (*models.EpisodeRecord, error) {
	var record models.EpisodeRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("history record", id)
		}
		return nil, fmt.Errorf("getting history record: %w", err)
	}
	return &record, nil
}

func (r *gormRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before.UTC()).
		Delete(&models.EpisodeRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("pruning history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
