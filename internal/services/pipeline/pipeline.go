// Package pipeline runs episodes through download, recognition and
// transcript output, one episode at a time in list order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/killallgit/podcast-dl/internal/models"
	"github.com/killallgit/podcast-dl/internal/paths"
	"github.com/killallgit/podcast-dl/internal/progress"
	"github.com/killallgit/podcast-dl/internal/services/feeds"
	"github.com/killallgit/podcast-dl/internal/services/history"
	"github.com/killallgit/podcast-dl/internal/services/recognition"
	"github.com/killallgit/podcast-dl/pkg/download"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// Dependencies are the collaborators a Pipeline drives
type Dependencies struct {
	Downloader  Downloader
	Transcriber Transcriber
	// Writer defaults to transcript.NewWriter()
	Writer Writer
	// Published is optional; without it feed transcripts are ignored
	Published PublishedFetcher
	// Recorder is optional
	Recorder history.Recorder
	// Progress defaults to log-only progress
	Progress *progress.Renderer
}

// Pipeline processes episodes sequentially
type Pipeline struct {
	cfg     Config
	deps    Dependencies
	formats []transcript.Format
	parser  *transcript.Parser
}

// New validates cfg and returns a pipeline. Every configuration problem is
// reported here, before any network or compute work.
func New(cfg Config, deps Dependencies) (*Pipeline, error) {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, apperrors.ConfigError("output.dir", "must be set")
	}

	formats, err := transcript.ParseFormats(cfg.Format)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModeBatch
	case ModeBatch, ModeSingle:
	default:
		return nil, apperrors.ConfigError("mode", fmt.Sprintf("unknown mode %q", cfg.Mode))
	}

	if !cfg.DownloadOnly {
		if _, err := recognition.ParseModelSize(cfg.ModelSize); err != nil {
			return nil, err
		}
		if _, err := recognition.ParseComputeProfile(cfg.Compute); err != nil {
			return nil, err
		}
		if deps.Transcriber == nil {
			return nil, apperrors.New(apperrors.ErrCodeInternal, "pipeline needs a transcriber")
		}
	}

	if deps.Writer == nil {
		deps.Writer = transcript.NewWriter()
	}
	if deps.Progress == nil {
		deps.Progress = progress.NewPlain()
	}

	return &Pipeline{cfg: cfg, deps: deps, formats: formats, parser: transcript.NewParser()}, nil
}

// Formats returns the transcript formats a run writes
func (p *Pipeline) Formats() []transcript.Format {
	return append([]transcript.Format(nil), p.formats...)
}

// Run processes episodes in order. In batch mode failures are collected in
// the report and the run continues; in single mode the first failure ends
// the run and is returned. A cancelled context stops the run before the next
// episode and its error is returned with the partial report.
func (p *Pipeline) Run(ctx context.Context, episodes []feeds.Episode) (*Report, error) {
	report := &Report{RunID: history.NewRunID(), Total: len(episodes)}
	if p.deps.Downloader == nil {
		return report, apperrors.New(apperrors.ErrCodeInternal, "pipeline needs a downloader")
	}

	unlock, err := acquireLock(p.cfg.OutputDir)
	if err != nil {
		return report, err
	}
	defer unlock()

	for i, ep := range episodes {
		if ctx.Err() != nil {
			p.cancelled(report, len(episodes)-i)
			return report, ctx.Err()
		}

		slog.Info("Processing episode", "index", i+1, "total", len(episodes), "title", ep.Title)
		outcome, failure := p.processEpisode(ctx, ep)

		if failure != nil {
			if ctx.Err() != nil {
				p.cancelled(report, len(episodes)-i)
				return report, ctx.Err()
			}
			p.fail(report, outcome, *failure)
			if p.cfg.Mode == ModeSingle {
				return report, *failure
			}
			continue
		}

		report.Completed = append(report.Completed, *outcome)
		p.record(ctx, report.RunID, outcome, nil)
	}

	slog.Info("Run finished",
		"completed", report.Succeeded(),
		"failed", len(report.Failures),
		"output", p.cfg.OutputDir)
	return report, nil
}

// TranscribeFile transcribes a local audio file and writes its transcripts
// next to base. An empty base uses the audio path without its extension.
// It is always a single-file context: a failure is returned.
func (p *Pipeline) TranscribeFile(ctx context.Context, audioPath, base string) (*Outcome, error) {
	if base == "" {
		base = paths.TranscriptBaseForFile(audioPath)
	}

	unlock, err := acquireLock(filepath.Dir(base))
	if err != nil {
		return nil, err
	}
	defer unlock()

	name := filepath.Base(audioPath)
	ep := feeds.Episode{Title: strings.TrimSuffix(name, filepath.Ext(name))}
	outcome := &Outcome{Episode: ep, AudioPath: audioPath, TranscriptBase: base}
	runID := history.NewRunID()

	if failure := p.recognize(ctx, outcome); failure != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logFailure(*failure)
		p.record(ctx, runID, outcome, failure)
		return nil, *failure
	}

	p.record(ctx, runID, outcome, nil)
	return outcome, nil
}

// processEpisode runs the stages for one episode. The outcome always carries
// the resolved paths, even when a failure is returned.
func (p *Pipeline) processEpisode(ctx context.Context, ep feeds.Episode) (*Outcome, *Failure) {
	outcome := &Outcome{
		Episode:        ep,
		AudioPath:      paths.AudioPath(p.cfg.OutputDir, ep),
		TranscriptBase: paths.TranscriptBase(p.cfg.OutputDir, ep),
	}

	if p.cfg.PreferPublished && !p.cfg.DownloadOnly && ep.HasTranscript() && p.deps.Published != nil {
		if result := p.fetchPublished(ctx, ep); result != nil {
			outcome.AudioPath = ""
			outcome.Source = models.SourcePublished
			if failure := p.write(outcome, result); failure != nil {
				return outcome, failure
			}
			return outcome, nil
		}
	}

	bar := p.deps.Progress.NewBar(ep.Title, progress.Bytes)
	_, err := p.deps.Downloader.FetchWithProgress(ctx, ep.AudioURL, outcome.AudioPath, p.cfg.SkipExisting,
		func(pr download.Progress) { bar.Update(pr.Transferred, pr.Total) })
	bar.Finish()
	if err != nil {
		return outcome, &Failure{Episode: ep, Stage: StageDownload, Err: err}
	}

	if p.cfg.DownloadOnly {
		slog.Info("Downloaded", "title", ep.Title, "path", outcome.AudioPath)
		return outcome, nil
	}

	if failure := p.recognize(ctx, outcome); failure != nil {
		return outcome, failure
	}
	return outcome, nil
}

// recognize transcribes outcome.AudioPath and writes the result
func (p *Pipeline) recognize(ctx context.Context, outcome *Outcome) *Failure {
	bar := p.deps.Progress.NewBar(outcome.Episode.Title, progress.Milliseconds)
	result, err := p.deps.Transcriber.Transcribe(ctx, recognition.Request{
		AudioPath: outcome.AudioPath,
		ModelSize: p.cfg.ModelSize,
		Language:  p.cfg.Language,
		Compute:   p.cfg.Compute,
	}, func(pr recognition.Progress) {
		total := int64(-1)
		if pr.Duration > 0 {
			total = milliseconds(pr.Duration)
		}
		bar.Update(milliseconds(pr.Position), total)
	})
	bar.Finish()
	if err != nil {
		return &Failure{Episode: outcome.Episode, Stage: StageTranscribe, Err: err}
	}

	outcome.Source = models.SourceRecognition
	return p.write(outcome, result)
}

func (p *Pipeline) write(outcome *Outcome, result *transcript.Result) *Failure {
	files, err := p.deps.Writer.Write(result, outcome.TranscriptBase, p.formats)
	if err != nil {
		return &Failure{Episode: outcome.Episode, Stage: StageWrite, Err: err}
	}
	outcome.Files = files
	outcome.Language = result.Language
	outcome.Segments = result.Len()
	outcome.Duration = result.Duration()
	for _, f := range files {
		slog.Info("Saved transcript", "title", outcome.Episode.Title, "path", f)
	}
	return nil
}

// fetchPublished returns the feed's own transcript, or nil when it cannot be
// used and recognition should run instead
func (p *Pipeline) fetchPublished(ctx context.Context, ep feeds.Episode) *transcript.Result {
	fetched, err := p.deps.Published.Fetch(ctx, ep.TranscriptURL, ep.TranscriptType)
	if err != nil {
		slog.Warn("Published transcript unavailable, transcribing instead", "title", ep.Title, "error", err)
		return nil
	}
	result, err := p.parser.Parse(fetched.Content, fetched.Format)
	if err != nil {
		slog.Warn("Published transcript unreadable, transcribing instead", "title", ep.Title, "format", fetched.Format, "error", err)
		return nil
	}
	if result.Len() == 0 {
		slog.Warn("Published transcript is empty, transcribing instead", "title", ep.Title)
		return nil
	}
	if result.Language == "" {
		result.Language = p.cfg.Language
	}
	slog.Info("Using published transcript", "title", ep.Title, "format", fetched.Format, "segments", result.Len())
	return result
}

func (p *Pipeline) fail(report *Report, outcome *Outcome, failure Failure) {
	report.Failures = append(report.Failures, failure)
	logFailure(failure)
	p.record(context.Background(), report.RunID, outcome, &failure)
}

func (p *Pipeline) cancelled(report *Report, remaining int) {
	report.Cancelled = true
	slog.Warn("Run cancelled", "completed", report.Succeeded(), "failed", len(report.Failures), "remaining", remaining)
}

func logFailure(failure Failure) {
	slog.Error("Episode failed",
		"title", failure.Episode.Title,
		"stage", failure.Stage,
		"code", apperrors.GetCode(failure.Err),
		"error", failure.Err)
}

func (p *Pipeline) record(ctx context.Context, runID string, outcome *Outcome, failure *Failure) {
	if p.deps.Recorder == nil || outcome == nil {
		return
	}

	record := &models.EpisodeRecord{
		RunID:          runID,
		Title:          outcome.Episode.Title,
		AudioURL:       outcome.Episode.AudioURL,
		AudioPath:      outcome.AudioPath,
		TranscriptBase: outcome.TranscriptBase,
		Language:       outcome.Language,
		Duration:       outcome.Duration,
		Segments:       outcome.Segments,
		Source:         outcome.Source,
		Status:         models.StatusCompleted,
	}
	switch {
	case failure != nil:
		record.Status = models.StatusFailed
		record.Stage = string(failure.Stage)
		record.Error = failure.Err.Error()
	case p.cfg.DownloadOnly:
		record.Status = models.StatusDownloaded
	default:
		record.Formats = formatList(p.formats)
	}

	if err := p.deps.Recorder.Record(context.WithoutCancel(ctx), record); err != nil {
		slog.Warn("History not recorded", "title", record.Title, "error", err)
	}
}

func formatList(formats []transcript.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

func milliseconds(secs float64) int64 {
	return int64(math.Round(secs * 1000))
}
