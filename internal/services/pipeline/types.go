package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/killallgit/podcast-dl/internal/services/feeds"
	"github.com/killallgit/podcast-dl/internal/services/recognition"
	"github.com/killallgit/podcast-dl/pkg/download"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// Mode decides what happens after an episode fails
type Mode string

const (
	// ModeBatch records the failure and moves on to the next episode
	ModeBatch Mode = "batch"
	// ModeSingle stops the run at the first failure
	ModeSingle Mode = "single"
)

// Stage names a step of per-episode processing
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageWrite      Stage = "write"
)

// LockFileName is created in the output directory while a run holds it
const LockFileName = ".podcast-dl.lock"

// Config is everything a run needs to know up front
type Config struct {
	OutputDir string
	// Format is txt, srt, json or all
	Format       string
	ModelSize    string
	Language     string
	Compute      string
	SkipExisting bool
	Mode         Mode
	// DownloadOnly stops after the download stage
	DownloadOnly bool
	// PreferPublished uses a feed-provided transcript when one is linked
	PreferPublished bool
}

// Downloader fetches audio
type Downloader interface {
	FetchWithProgress(ctx context.Context, sourceURL, destination string, skipExisting bool, progress download.ProgressFunc) (string, error)
}

// Transcriber turns audio into a transcript
type Transcriber interface {
	Transcribe(ctx context.Context, req recognition.Request, progress recognition.ProgressFunc) (*transcript.Result, error)
}

// Writer serializes transcripts
type Writer interface {
	Write(result *transcript.Result, basePath string, formats []transcript.Format) ([]string, error)
}

// PublishedFetcher retrieves a transcript linked from a feed
type PublishedFetcher interface {
	Fetch(ctx context.Context, url, typeHint string) (*transcript.FetchResult, error)
}

// Outcome describes one episode that completed its stages
type Outcome struct {
	Episode        feeds.Episode
	AudioPath      string
	TranscriptBase string
	Files          []string
	Language       string
	Segments       int
	Duration       float64
	// Source is "recognition" or "published"; empty for download-only runs
	Source string
}

// Failure is one episode that did not complete
type Failure struct {
	Episode feeds.Episode
	Stage   Stage
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", f.Episode.Title, f.Stage, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes a run
type Report struct {
	RunID     string
	Total     int
	Completed []Outcome
	Failures  []Failure
	// Cancelled is set when the context ended before every episode ran
	Cancelled bool
}

// Succeeded returns how many episodes completed
func (r *Report) Succeeded() int {
	return len(r.Completed)
}

// Err summarizes the failures, or returns nil when there were none
func (r *Report) Err() error {
	switch len(r.Failures) {
	case 0:
		return nil
	case 1:
		return r.Failures[0]
	}
	titles := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		titles[i] = f.Episode.Title
	}
	return fmt.Errorf("%d of %d episodes failed: %s", len(r.Failures), r.Total, strings.Join(titles, ", "))
}
