package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/killallgit/podcast-dl/internal/progress"
	"github.com/killallgit/podcast-dl/internal/services/pipeline"
)

func newRunCmd(app *commandContext) *cobra.Command {
	var sel selection

	cmd := &cobra.Command{
		Use:   "run URL",
		Short: "Download and transcribe podcast episodes in one step",
		Long: `Resolve an RSS feed (or a direct audio URL with --direct), download the
selected episodes and transcribe each one.

Episodes are processed one at a time, newest first. A failed episode is
reported and the run moves on; the command exits non-zero when any
episode failed. With --direct the single episode's failure is the result.`,
		Example: `  podcast-dl run https://feeds.example.com/podcast.rss --latest 3 --format all
  podcast-dl run https://cdn.example.com/ep42.mp3 --direct -l zh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEpisodes(cmd, app, args[0], sel, false)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&sel.latest, "latest", 1, "number of latest episodes to process (0 = all)")
	flags.BoolVar(&sel.direct, "direct", false, "treat URL as a direct audio URL (not RSS)")
	addOutputDirFlag(flags)
	addRecognitionFlags(flags)
	addFormatFlag(flags)
	addSkipExistingFlag(flags)
	flags.Bool("prefer-published", false, "use a transcript linked from the feed instead of recognition when available")
	bindConfig(flags, "prefer-published", "transcription.prefer_published")

	return cmd
}

// runEpisodes resolves url and pushes the episodes through the pipeline.
// A direct URL is a single-file context; a feed is a batch.
func runEpisodes(cmd *cobra.Command, app *commandContext, url string, sel selection, downloadOnly bool) error {
	ctx := cmd.Context()
	outputDir := app.outputDir()

	mode := pipeline.ModeBatch
	if sel.direct {
		mode = pipeline.ModeSingle
	}
	cfg := app.pipelineConfig(outputDir, mode)
	cfg.DownloadOnly = downloadOnly

	deps := pipeline.Dependencies{
		Downloader: app.downloader(),
		Published:  app.publishedFetcher(),
		Progress:   progress.New(cmd.ErrOrStderr()),
	}
	if !downloadOnly {
		engine, err := app.transcriber()
		if err != nil {
			return err
		}
		defer func() {
			if err := engine.Close(); err != nil {
				slog.Warn("Failed to release recognition backend", "error", err)
			}
		}()
		deps.Transcriber = engine
	}

	recorder, closeHistory := app.recorder()
	defer closeHistory()
	deps.Recorder = recorder

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}

	episodes, err := app.resolveEpisodes(ctx, url, sel)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		slog.Warn("No episodes to process", "url", url)
		return nil
	}
	slog.Info("Processing episodes", "count", len(episodes), "output", outputDir)

	report, err := p.Run(ctx, episodes)
	printReport(cmd.OutOrStdout(), report, outputDir, downloadOnly)
	if err != nil {
		return err
	}
	return report.Err()
}
