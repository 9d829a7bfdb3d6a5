package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Execute runs the CLI. Any error, including failed episodes, exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds a fresh command tree
func NewRootCmd() *cobra.Command {
	app := newCommandContext()
	return newRootCmd(app)
}

func newRootCmd(app *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "podcast-dl",
		Short: "Download and transcribe podcasts",
		Long: `podcast-dl - download podcast episodes and transcribe them to text

Episodes come from an RSS feed or a direct audio URL. Audio is streamed to
disk, run through a local speech recognition backend and written as plain
text, SRT subtitles or JSON.

Examples:
  # Download + transcribe the latest episode of a feed
  podcast-dl run https://feeds.example.com/podcast.rss

  # Latest 3 episodes as SRT subtitles
  podcast-dl run https://feeds.example.com/podcast.rss --latest 3 --format srt

  # Transcribe a local audio file
  podcast-dl transcribe episode.mp3

  # Download only
  podcast-dl download https://feeds.example.com/podcast.rss --latest 5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			return app.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "settings file (default ./config/settings.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("json-logs", false, "enable JSON formatted logs")
	bindConfig(flags, "log-level", "logging.level")

	rootCmd.AddCommand(
		newRunCmd(app),
		newDownloadCmd(app),
		newTranscribeCmd(app),
		newHistoryCmd(app),
		newCleanupCmd(app),
		newServeCmd(app),
		newVersionCmd(),
	)
	return rootCmd
}

// skipsConfig reports commands that run without configuration
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}
