package models

import (
	"strings"
	"time"
)

// RecordStatus is the outcome of processing one episode
type RecordStatus string

const (
	StatusCompleted  RecordStatus = "completed"
	StatusDownloaded RecordStatus = "downloaded"
	StatusFailed     RecordStatus = "failed"
)

// Transcript sources
const (
	SourceRecognition = "recognition"
	SourcePublished   = "published"
)

// EpisodeRecord is one history entry written by a pipeline run
type EpisodeRecord struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	RunID          string       `json:"run_id" gorm:"not null;index"`
	Title          string       `json:"title" gorm:"not null"`
	AudioURL       string       `json:"audio_url" gorm:"column:audio_url"`
	AudioPath      string       `json:"audio_path"`
	TranscriptBase string       `json:"transcript_base"`
	Formats        string       `json:"formats"` // comma separated, e.g. "txt,srt"
	Language       string       `json:"language"`
	Duration       float64      `json:"duration"` // seconds covered by the transcript
	Segments       int          `json:"segments"`
	Source         string       `json:"source,omitempty"`
	Status         RecordStatus `json:"status" gorm:"not null;index"`
	Stage          string       `json:"stage,omitempty"`
	Error          string       `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time    `json:"created_at" gorm:"index"`
}

// FormatList splits Formats
func (r *EpisodeRecord) FormatList() []string {
	if r.Formats == "" {
		return nil
	}
	return strings.Split(r.Formats, ",")
}

// HasFormat reports whether the run wrote the given transcript format
func (r *EpisodeRecord) HasFormat(format string) bool {
	for _, f := range r.FormatList() {
		if f == format {
			return true
		}
	}
	return false
}
