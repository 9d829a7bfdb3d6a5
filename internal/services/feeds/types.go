package feeds

import "time"

// DefaultTitle is used for items that carry no title
const DefaultTitle = "Unknown Episode"

// Episode describes one downloadable episode
type Episode struct {
	Title       string
	AudioURL    string
	Published   *time.Time
	Duration    *int // seconds, from itunes:duration
	Description string

	// Published transcript announced through podcast:transcript, if any
	TranscriptURL  string
	TranscriptType string
}

// HasTranscript reports whether the feed announced a transcript for the episode
func (e Episode) HasTranscript() bool {
	return e.TranscriptURL != ""
}

// PublishedDate formats the publish day, or "unknown date"
func (e Episode) PublishedDate() string {
	if e.Published == nil {
		return "unknown date"
	}
	return e.Published.Format("2006-01-02")
}
