package cmd

import (
	"context"
	"log/slog"

	"github.com/killallgit/podcast-dl/internal/services/feeds"
)

// selection narrows the episodes a command works on
type selection struct {
	direct bool
	latest int
	filter string
}

// resolveEpisodes turns a URL into the episodes to process, newest first
func (c *commandContext) resolveEpisodes(ctx context.Context, url string, sel selection) ([]feeds.Episode, error) {
	if sel.direct {
		return []feeds.Episode{feeds.Direct(url)}, nil
	}

	slog.Info("Fetching RSS feed", "url", url)
	episodes, err := c.resolver().Resolve(ctx, url)
	if err != nil {
		return nil, err
	}
	slog.Info("Found episodes", "count", len(episodes))

	if sel.filter != "" {
		episodes = feeds.Filter(episodes, sel.filter)
		slog.Info("Filtered episodes", "keyword", sel.filter, "count", len(episodes))
	}
	return feeds.Latest(episodes, sel.latest), nil
}
