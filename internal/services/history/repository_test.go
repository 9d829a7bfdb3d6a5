package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/podcast-dl/internal/database"
	"github.com/killallgit/podcast-dl/internal/models"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

func setupTestDB(t *testing.T) Repository {
	t.Helper()
	db, err := database.Open(database.InMemory, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db.DB)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	record := &models.EpisodeRecord{
		RunID:          "run-a",
		Title:          "Episode One",
		AudioURL:       "https://cdn.example.com/one.mp3",
		AudioPath:      "/out/Episode One.mp3",
		TranscriptBase: "/out/Episode One",
		Formats:        "txt,json",
		Language:       "en",
		Duration:       61.5,
		Segments:       12,
		Status:         models.StatusCompleted,
	}
	require.NoError(t, repo.Create(ctx, record))
	require.NotZero(t, record.ID)

	got, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Episode One", got.Title)
	assert.Equal(t, []string{"txt", "json"}, got.FormatList())
	assert.Equal(t, 61.5, got.Duration)

	_, err = repo.Get(ctx, record.ID+100)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &models.EpisodeRecord{
			RunID:     "run",
			Title:     title,
			Status:    models.StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	records, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Title)
	assert.Equal(t, "second", records[1].Title)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_ListByRun(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	for _, rec := range []models.EpisodeRecord{
		{RunID: "a", Title: "a1", Status: models.StatusCompleted},
		{RunID: "b", Title: "b1", Status: models.StatusFailed, Stage: "download"},
		{RunID: "a", Title: "a2", Status: models.StatusFailed, Stage: "transcribe"},
	} {
		rec := rec
		require.NoError(t, repo.Create(ctx, &rec))
	}

	records, err := repo.ListByRun(ctx, "a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].Title)
	assert.Equal(t, "transcribe", records[1].Stage)
}

func TestRepository_DeleteBefore(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &models.EpisodeRecord{RunID: "r", Title: "old", Status: models.StatusCompleted, CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.EpisodeRecord{RunID: "r", Title: "new", Status: models.StatusCompleted, CreatedAt: now}))

	removed, err := repo.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Title)
}
