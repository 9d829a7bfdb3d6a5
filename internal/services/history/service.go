package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/killallgit/podcast-dl/internal/models"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// DefaultListLimit bounds List when no limit is given
const DefaultListLimit = 20

// Service records and queries pipeline history
type Service struct {
	repo Repository
}

// NewService creates a history service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewRunID returns a fresh identifier for one pipeline run
func NewRunID() string {
	return uuid.NewString()
}

// Record stores a record. Failures are logged and returned; callers treat
// history as best effort.
func (s *Service) Record(ctx context.Context, record *models.EpisodeRecord) error {
	if record.RunID == "" {
		record.RunID = NewRunID()
	}
	if record.Status == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "history record needs a status")
	}
	if err := s.repo.Create(ctx, record); err != nil {
		slog.Warn("Failed to record history", "title", record.Title, "error", err)
		return err
	}
	return nil
}

// List returns up to limit records, newest first
func (s *Service) List(ctx context.Context, limit int) ([]models.EpisodeRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, limit)
}

// Run returns the records of one run
func (s *Service) Run(ctx context.Context, runID string) ([]models.EpisodeRecord, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "run id must be a UUID").WithDetail("run_id", runID)
	}
	return s.repo.ListByRun(ctx, runID)
}

// Get returns one record or a NOT_FOUND error
func (s *Service) Get(ctx context.Context, id uint) (*models.EpisodeRecord, error) {
	return s.repo.Get(ctx, id)
}

// Prune deletes records created before the cutoff
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	removed, err := s.repo.DeleteBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("Pruned history", "removed", removed, "before", before.Format(time.RFC3339))
	}
	return removed, nil
}
