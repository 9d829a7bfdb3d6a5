package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/killallgit/podcast-dl/internal/models"
	"github.com/killallgit/podcast-dl/internal/services/history"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

func newHistoryCmd(app *commandContext) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show processed episodes",
		Long: `Show the episodes earlier runs processed, newest first.

Use --run to show every episode of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeDB, err := app.historyService()
			if err != nil {
				return err
			}
			defer closeDB()

			var records []models.EpisodeRecord
			if runID != "" {
				records, err = service.Run(cmd.Context(), runID)
			} else {
				records, err = service.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			fmt.Fprintln(out, renderHistory(records, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "maximum number of records")
	cmd.Flags().StringVar(&runID, "run", "", "show the records of one run")
	cmd.AddCommand(newHistoryPruneCmd(app))
	return cmd
}

func newHistoryPruneCmd(app *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old history records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return apperrors.New(apperrors.ErrCodeInvalidInput, "--older-than must be positive")
			}
			service, closeDB, err := app.historyService()
			if err != nil {
				return err
			}
			defer closeDB()

			removed, err := service.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history records\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete records created before this age")
	return cmd
}

// historyService opens history for the history commands, which fail when it is off
func (c *commandContext) historyService() (*history.Service, func(), error) {
	if !c.cfg.History.Enabled {
		return nil, nil, apperrors.ConfigError("history.enabled", "history is disabled")
	}
	service, _, closeDB, err := c.openHistory()
	if err != nil {
		return nil, nil, err
	}
	return service, closeDB, nil
}

func renderHistory(records []models.EpisodeRecord, now time.Time) string {
	rows := make([][]string, len(records))
	for i, r := range records {
		detail := r.Language
		if r.Status == models.StatusFailed {
			detail = r.Stage
		}
		duration := ""
		if r.Status == models.StatusCompleted {
			duration = transcript.FormatClock(r.Duration)
		}
		rows[i] = []string{
			strconv.FormatUint(uint64(r.ID), 10),
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			r.Title,
			string(r.Status),
			detail,
			duration,
			strings.Join(r.FormatList(), ","),
		}
	}
	return renderTable(
		[]string{"ID", "When", "Title", "Status", "Stage/Language", "Duration", "Formats"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
