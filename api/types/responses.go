package types

import "github.com/killallgit/podcast-dl/internal/models"

// Status constants for API responses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// BaseResponse contains fields common to all API responses
type BaseResponse struct {
	Status  string `json:"status"` // One of the Status constants above
	Message string `json:"message,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Status  string         `json:"status"`
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// HistoryResponse lists history records, newest first
type HistoryResponse struct {
	BaseResponse
	Records []models.EpisodeRecord `json:"records"`
	Count   int                    `json:"count"`
	RunID   string                 `json:"run_id,omitempty"`
}

// RecordResponse wraps one history record
type RecordResponse struct {
	BaseResponse
	Record *models.EpisodeRecord `json:"record"`
}
