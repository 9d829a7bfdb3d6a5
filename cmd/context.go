package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/killallgit/podcast-dl/internal/database"
	"github.com/killallgit/podcast-dl/internal/logging"
	"github.com/killallgit/podcast-dl/internal/paths"
	"github.com/killallgit/podcast-dl/internal/services/feeds"
	"github.com/killallgit/podcast-dl/internal/services/history"
	"github.com/killallgit/podcast-dl/internal/services/pipeline"
	"github.com/killallgit/podcast-dl/internal/services/recognition"
	"github.com/killallgit/podcast-dl/pkg/config"
	"github.com/killallgit/podcast-dl/pkg/download"
	"github.com/killallgit/podcast-dl/pkg/ffmpeg"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// configKeyAnnotation marks a flag that overrides a configuration key
const configKeyAnnotation = "podcast-dl/config-key"

// transcriber is a recognition engine the CLI can release when done
type transcriber interface {
	pipeline.Transcriber
	Close() error
}

type transcriberFactory func(cfg *config.Config, modelCacheDir string) (transcriber, error)

func newRecognitionTranscriber(cfg *config.Config, modelCacheDir string) (transcriber, error) {
	media := ffmpeg.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath, cfg.FFmpeg.Timeout)
	adapter, err := recognition.NewFromConfig(cfg, media, modelCacheDir)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// commandContext carries state shared by every command of one invocation
type commandContext struct {
	configPath string
	cfg        *config.Config

	newTranscriber transcriberFactory
}

func newCommandContext() *commandContext {
	return &commandContext{newTranscriber: newRecognitionTranscriber}
}

// bindConfig ties flag name to a configuration key; the flag wins only when set
func bindConfig(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, configKeyAnnotation, []string{key})
}

// load reads configuration for cmd, applying its bound flags, and installs the logger
func (c *commandContext) load(cmd *cobra.Command) error {
	v := config.NewViper()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return bindErr
	}

	if jsonLogs, _ := cmd.Flags().GetBool("json-logs"); jsonLogs {
		v.Set("logging.format", "json")
	}

	cfg, err := config.LoadViper(v, c.configPath)
	if err != nil {
		return err
	}
	if _, err := logging.Setup(cfg.Logging, cmd.ErrOrStderr()); err != nil {
		return err
	}

	c.cfg = cfg
	slog.Debug("Configuration loaded", "backend", cfg.Transcription.Backend, "model", cfg.Transcription.Model)
	return nil
}

func (c *commandContext) outputDir() string {
	return paths.OrDefault(c.cfg.Output.Dir, paths.DefaultOutputDir())
}

func (c *commandContext) cacheDir() string {
	return paths.OrDefault(c.cfg.Cache.Dir, paths.DefaultCacheDir())
}

func (c *commandContext) historyPath() string {
	if c.cfg.History.Path != "" {
		return paths.ExpandHome(c.cfg.History.Path)
	}
	return filepath.Join(c.cacheDir(), "history.db")
}

// openHistory opens the history ledger. The returned close func is never nil.
func (c *commandContext) openHistory() (*history.Service, *database.DB, func(), error) {
	db, err := database.Open(c.historyPath(), c.cfg.History.Verbose)
	if err != nil {
		return nil, nil, func() {}, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close history database", "error", err)
		}
	}
	return history.NewService(history.NewRepository(db.DB)), db, closeDB, nil
}

// recorder returns the history recorder for pipeline runs, or nil when
// history is disabled or unavailable
func (c *commandContext) recorder() (history.Recorder, func()) {
	if !c.cfg.History.Enabled {
		return nil, func() {}
	}
	service, _, closeDB, err := c.openHistory()
	if err != nil {
		slog.Warn("History unavailable, continuing without it", "path", c.historyPath(), "error", err)
		return nil, closeDB
	}
	return service, closeDB
}

func (c *commandContext) downloader() *download.Downloader {
	dc := c.cfg.Download
	return download.NewDownloader(download.DownloadOptions{
		MaxSize:        dc.MaxSize,
		Timeout:        dc.Timeout,
		UserAgent:      dc.UserAgent,
		ValidateAudio:  dc.ValidateAudio,
		BandwidthLimit: dc.BandwidthLimit,
	})
}

func (c *commandContext) resolver() *feeds.Resolver {
	return feeds.NewResolver(c.cfg.Download.UserAgent, c.cfg.Transcription.FetchTimeout)
}

func (c *commandContext) publishedFetcher() *transcript.Fetcher {
	options := transcript.DefaultFetchOptions()
	options.Timeout = c.cfg.Transcription.FetchTimeout
	options.UserAgent = c.cfg.Download.UserAgent
	return transcript.NewFetcher(options)
}

func (c *commandContext) transcriber() (transcriber, error) {
	return c.newTranscriber(c.cfg, filepath.Join(c.cacheDir(), "models"))
}

// pipelineConfig maps configuration onto a pipeline run
func (c *commandContext) pipelineConfig(outputDir string, mode pipeline.Mode) pipeline.Config {
	return pipeline.Config{
		OutputDir:       outputDir,
		Format:          c.cfg.Output.Format,
		ModelSize:       c.cfg.Transcription.Model,
		Language:        c.cfg.Transcription.Language,
		Compute:         c.cfg.Transcription.ComputeType,
		SkipExisting:    c.cfg.Output.SkipExisting,
		Mode:            mode,
		PreferPublished: c.cfg.Transcription.PreferPublished,
	}
}
