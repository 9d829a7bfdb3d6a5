package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

var audioSuffixes = []string{".mp3", ".m4a", ".ogg", ".opus"}

// Resolver turns feed URLs into episode lists
type Resolver struct {
	parser *gofeed.Parser
}

// NewResolver creates a resolver that fetches feeds with the given user agent and timeout
func NewResolver(userAgent string, timeout time.Duration) *Resolver {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: timeout}
	return &Resolver{parser: parser}
}

// Resolve fetches and parses a feed and returns its audio episodes newest-first.
// Local feed files are accepted as well as http(s) URLs.
func (r *Resolver) Resolve(ctx context.Context, feedURL string) ([]Episode, error) {
	feed, err := r.parse(ctx, feedURL)
	if err != nil {
		return nil, apperrors.FeedUnavailable(feedURL, err)
	}

	episodes := make([]Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		if ep, ok := episodeFromItem(item); ok {
			episodes = append(episodes, ep)
		}
	}
	SortNewestFirst(episodes)

	slog.Debug("Resolved feed", "url", feedURL, "items", len(feed.Items), "episodes", len(episodes))
	return episodes, nil
}

func (r *Resolver) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if u, err := url.Parse(feedURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return r.parser.ParseURLWithContext(feedURL, ctx)
	}

	f, err := os.Open(feedURL)
	if err != nil {
		return nil, fmt.Errorf("not an http(s) URL or readable file: %w", err)
	}
	defer f.Close()
	return r.parser.Parse(f)
}

func episodeFromItem(item *gofeed.Item) (Episode, bool) {
	audioURL := extractAudioURL(item)
	if audioURL == "" {
		return Episode{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = DefaultTitle
	}

	ep := Episode{
		Title:       title,
		AudioURL:    audioURL,
		Description: item.Description,
	}
	if item.PublishedParsed != nil {
		published := *item.PublishedParsed
		ep.Published = &published
	}
	if item.ITunesExt != nil {
		ep.Duration = ParseDuration(item.ITunesExt.Duration)
	}
	ep.TranscriptURL, ep.TranscriptType = extractTranscript(item)
	return ep, true
}

// extractAudioURL picks the first audio enclosure, then the first audio media:content
func extractAudioURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.Contains(enc.Type, "audio") || hasAudioSuffix(enc.URL) {
			return enc.URL
		}
	}

	for _, media := range extensionEntries(item.Extensions, "media", "content") {
		medium := media.Attrs["medium"]
		mime := media.Attrs["type"]
		if strings.Contains(medium, "audio") || strings.Contains(mime, "audio") {
			if u := media.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	return ""
}

// extractTranscript returns the first podcast:transcript url and type
func extractTranscript(item *gofeed.Item) (string, string) {
	for _, tr := range extensionEntries(item.Extensions, "podcast", "transcript") {
		if u := tr.Attrs["url"]; u != "" {
			return u, tr.Attrs["type"]
		}
	}
	return "", ""
}

func extensionEntries(exts ext.Extensions, namespace, name string) []ext.Extension {
	if exts == nil {
		return nil
	}
	return exts[namespace][name]
}

func hasAudioSuffix(rawURL string) bool {
	for _, suffix := range audioSuffixes {
		if strings.HasSuffix(rawURL, suffix) {
			return true
		}
	}
	return false
}

// ParseDuration parses itunes:duration values of the form S, M:S or H:M:S
func ParseDuration(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return nil
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

// SortNewestFirst orders dated episodes newest-first; undated episodes keep
// their relative order after all dated ones
func SortNewestFirst(episodes []Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		a, b := episodes[i].Published, episodes[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Direct builds the single episode for a direct audio URL. The title is the
// last path segment without query and extension.
func Direct(audioURL string) Episode {
	return Episode{Title: directTitle(audioURL), AudioURL: audioURL}
}

func directTitle(audioURL string) string {
	raw := audioURL
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		raw = u.Path
	}
	base := path.Base(strings.TrimRight(raw, "/"))
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "episode"
	}
	return base
}

// Filter keeps episodes whose title contains keyword, ignoring case.
// An empty keyword keeps everything.
func Filter(episodes []Episode, keyword string) []Episode {
	if keyword == "" {
		return episodes
	}
	keyword = strings.ToLower(keyword)
	out := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if strings.Contains(strings.ToLower(ep.Title), keyword) {
			out = append(out, ep)
		}
	}
	return out
}

// Latest returns the first n episodes; n <= 0 returns all of them
func Latest(episodes []Episode, n int) []Episode {
	if n <= 0 || n >= len(episodes) {
		return episodes
	}
	return episodes[:n]
}
