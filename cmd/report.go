package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/killallgit/podcast-dl/internal/services/pipeline"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// printReport writes the end-of-run summary
func printReport(w io.Writer, report *pipeline.Report, outputDir string, downloadOnly bool) {
	if len(report.Completed) > 0 {
		if downloadOnly {
			rows := make([][]string, len(report.Completed))
			for i, o := range report.Completed {
				rows[i] = []string{o.Episode.Title, o.AudioPath}
			}
			fmt.Fprintln(w, renderTable([]string{"Episode", "Audio"}, rows, nil))
		} else {
			rows := make([][]string, len(report.Completed))
			for i, o := range report.Completed {
				rows[i] = []string{
					o.Episode.Title,
					o.Language,
					transcript.FormatClock(o.Duration),
					strconv.Itoa(o.Segments),
					o.Source,
					fileNames(o.Files),
				}
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Episode", "Language", "Duration", "Segments", "Source", "Files"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
		}
	}

	if len(report.Failures) > 0 {
		rows := make([][]string, len(report.Failures))
		for i, f := range report.Failures {
			rows[i] = []string{f.Episode.Title, string(f.Stage), string(apperrors.GetCode(f.Err))}
		}
		fmt.Fprintln(w, renderTable([]string{"Failed episode", "Stage", "Code"}, rows, nil))
	}

	switch {
	case report.Cancelled:
		fmt.Fprintf(w, "\nCancelled after %d of %d episode(s). Output in: %s\n", report.Succeeded(), report.Total, outputDir)
	case len(report.Failures) > 0:
		fmt.Fprintf(w, "\nFinished with failures: %d of %d episode(s) succeeded. Output in: %s\n", report.Succeeded(), report.Total, outputDir)
	default:
		fmt.Fprintf(w, "\nDone! Output in: %s\n", outputDir)
	}
}

func fileNames(files []string) string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f)
	}
	return strings.Join(out, ", ")
}
