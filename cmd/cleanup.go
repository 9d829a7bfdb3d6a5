package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/killallgit/podcast-dl/internal/services/cleanup"
)

func newCleanupCmd(app *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale partial downloads",
		Long: `Remove leftover .part files from interrupted downloads in the output and
cache directories. Completed audio and transcripts are never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-age") {
				maxAge = app.cfg.Cache.PartMaxAge
			}

			var total int
			for _, dir := range app.cleanupDirs() {
				n, err := cleanup.PruneParts(dir, maxAge)
				if err != nil {
					return err
				}
				slog.Debug("Pruned partial downloads", "dir", dir, "count", n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d partial downloads\n", total)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "remove partial files older than this (default cache.part_max_age)")
	addOutputDirFlag(cmd.Flags())
	return cmd
}

func (c *commandContext) cleanupDirs() []string {
	output, cache := c.outputDir(), c.cacheDir()
	if output == cache {
		return []string{output}
	}
	return []string{output, cache}
}
