package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDownloadCmd(app *commandContext) *cobra.Command {
	var (
		sel      selection
		listOnly bool
	)

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download podcast audio from an RSS feed or direct URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if listOnly {
				return listEpisodes(cmd, app, args[0], sel)
			}
			return runEpisodes(cmd, app, args[0], sel, true)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&sel.latest, "latest", 0, "download only the N latest episodes (0 = all)")
	flags.BoolVar(&sel.direct, "direct", false, "treat URL as a direct audio URL (not RSS)")
	flags.StringVar(&sel.filter, "filter", "", "only episodes whose title contains this keyword")
	flags.BoolVar(&listOnly, "list", false, "list episodes without downloading")
	addOutputDirFlag(flags)
	addSkipExistingFlag(flags)

	return cmd
}

func listEpisodes(cmd *cobra.Command, app *commandContext, url string, sel selection) error {
	episodes, err := app.resolveEpisodes(cmd.Context(), url, sel)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, ep := range episodes {
		fmt.Fprintf(out, "  %3d. [%s] %s\n", i+1, ep.PublishedDate(), ep.Title)
	}
	return nil
}
