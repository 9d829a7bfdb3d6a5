// Package history serves the run ledger and the transcripts it points to
package history

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/types"
	"github.com/killallgit/podcast-dl/internal/models"
	historyService "github.com/killallgit/podcast-dl/internal/services/history"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// MaxListLimit caps the limit query parameter
const MaxListLimit = 500

var contentTypes = map[transcript.Format]string{
	transcript.FormatText: "text/plain; charset=utf-8",
	transcript.FormatSRT:  "application/x-subrip; charset=utf-8",
	transcript.FormatJSON: "application/json; charset=utf-8",
}

// List returns recent history records, or every record of one run with ?run=
func List(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runID := c.Query("run"); runID != "" {
			records, err := deps.History.Run(c.Request.Context(), runID)
			if err != nil {
				types.SendError(c, err)
				return
			}
			types.SendSuccess(c, types.HistoryResponse{
				BaseResponse: types.BaseResponse{Status: types.StatusOK},
				Records:      nonNil(records),
				Count:        len(records),
				RunID:        runID,
			})
			return
		}

		limit, ok := types.ParseLimitQuery(c, historyService.DefaultListLimit, MaxListLimit)
		if !ok {
			return
		}

		records, err := deps.History.List(c.Request.Context(), limit)
		if err != nil {
			types.SendError(c, err)
			return
		}

		types.SendSuccess(c, types.HistoryResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Records:      nonNil(records),
			Count:        len(records),
		})
	}
}

// Get returns one history record
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		record, err := deps.History.Get(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}

		types.SendSuccess(c, types.RecordResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Record:       record,
		})
	}
}

// Transcript streams one written transcript file of a completed record.
// ?format= picks txt, srt or json; the default is the first format written.
func Transcript(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := types.ParseUintParam(c, "id")
		if !ok {
			return
		}

		record, err := deps.History.Get(c.Request.Context(), id)
		if err != nil {
			types.SendError(c, err)
			return
		}

		format, err := pickFormat(record, c.Query("format"))
		if err != nil {
			types.SendError(c, err)
			return
		}

		path := transcript.PathFor(record.TranscriptBase, format)
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				types.SendError(c, apperrors.NotFound("transcript file", path))
				return
			}
			types.SendError(c, apperrors.Wrap(err, apperrors.ErrCodeInternal, "cannot read transcript"))
			return
		}

		c.Data(http.StatusOK, contentTypes[format], content)
	}
}

func pickFormat(record *models.EpisodeRecord, requested string) (transcript.Format, error) {
	written := record.FormatList()
	if record.Status != models.StatusCompleted || len(written) == 0 {
		return "", apperrors.NotFound("transcript", record.ID)
	}

	if requested == "" {
		return transcript.Format(written[0]), nil
	}

	formats, err := transcript.ParseFormats(requested)
	if err != nil || len(formats) != 1 {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "format must be txt, srt or json").
			WithDetail("format", requested)
	}
	if !record.HasFormat(string(formats[0])) {
		return "", apperrors.NotFound("transcript", record.ID).WithDetail("format", requested)
	}
	return formats[0], nil
}

func nonNil(records []models.EpisodeRecord) []models.EpisodeRecord {
	if records == nil {
		return []models.EpisodeRecord{}
	}
	return records
}
