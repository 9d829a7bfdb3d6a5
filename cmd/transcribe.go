package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/killallgit/podcast-dl/internal/paths"
	"github.com/killallgit/podcast-dl/internal/progress"
	"github.com/killallgit/podcast-dl/internal/services/pipeline"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

func newTranscribeCmd(app *commandContext) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe a local audio file",
		Long: `Transcribe a local audio file and write transcripts next to it, or to
the base path given with -o (the format extension is appended).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcribeFile(cmd, app, args[0], base)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&base, "output", "o", "", "output file base path without extension (default: FILE without its extension)")
	addRecognitionFlags(flags)
	addFormatFlag(flags)

	return cmd
}

func transcribeFile(cmd *cobra.Command, app *commandContext, audioPath, base string) error {
	info, err := os.Stat(audioPath)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("audio file %s: %v", audioPath, err)).
			WithDetail("path", audioPath)
	}
	if info.IsDir() {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("audio file %s is a directory", audioPath)).
			WithDetail("path", audioPath)
	}

	if base == "" {
		base = paths.TranscriptBaseForFile(audioPath)
	}

	engine, err := app.transcriber()
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("Failed to release recognition backend", "error", err)
		}
	}()

	recorder, closeHistory := app.recorder()
	defer closeHistory()

	p, err := pipeline.New(app.pipelineConfig(filepath.Dir(base), pipeline.ModeSingle), pipeline.Dependencies{
		Transcriber: engine,
		Recorder:    recorder,
		Progress:    progress.New(cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	outcome, err := p.TranscribeFile(cmd.Context(), audioPath, base)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Language", "Duration", "Segments"},
		[][]string{{filepath.Base(audioPath), outcome.Language, transcript.FormatClock(outcome.Duration), strconv.Itoa(outcome.Segments)}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
	for _, f := range outcome.Files {
		fmt.Fprintf(out, "Saved: %s\n", f)
	}
	return nil
}
