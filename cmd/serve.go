package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/killallgit/podcast-dl/api"
	"github.com/killallgit/podcast-dl/api/types"
	"github.com/killallgit/podcast-dl/internal/services/cleanup"
)

// cleanupInterval is how often the server prunes partial downloads
const cleanupInterval = time.Hour

func newServeCmd(app *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the history API server",
		Long: `Start a read-only HTTP API over the processing history.

Endpoints:
  GET /health                              liveness and database status
  GET /                                    version information
  GET /api/v1/history                      recent records (?limit=, ?run=)
  GET /api/v1/history/:id                  one record
  GET /api/v1/history/:id/transcript       transcript file (?format=txt|srt|json)`,
		Example: `  podcast-dl serve
  podcast-dl serve --host 0.0.0.0 --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.serve(cmd.Context())
		},
	}

	cmd.Flags().String("host", "", "server host (overrides config)")
	cmd.Flags().Int("port", 0, "server port (overrides config)")
	bindConfig(cmd.Flags(), "host", "server.host")
	bindConfig(cmd.Flags(), "port", "server.port")
	return cmd
}

func (c *commandContext) serve(ctx context.Context) error {
	deps := &types.Dependencies{Version: Version}
	if c.cfg.History.Enabled {
		service, db, closeDB, err := c.openHistory()
		if err != nil {
			return err
		}
		defer closeDB()
		deps.DB = db
		deps.History = service
	}

	server := api.NewServer(c.cfg.Server, deps)
	server.Initialize()

	janitor := cleanup.NewService(c.cleanupDirs(), c.cfg.Cache.PartMaxAge, cleanupInterval)
	janitor.Start(ctx)
	defer janitor.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	slog.Info("Server gracefully stopped")
	return nil
}
