package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchOptions configures transcript fetching behavior
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	MaxSize   int64 // Maximum transcript size in bytes
}

// DefaultFetchOptions returns default fetch options
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Timeout:   30 * time.Second,
		UserAgent: "podcast-dl/1.0",
		MaxSize:   10 * 1024 * 1024, // 10MB max for transcripts
	}
}

// Fetcher downloads transcripts published alongside feed episodes
type Fetcher struct {
	client  *http.Client
	options FetchOptions
}

// NewFetcher creates a new transcript fetcher
func NewFetcher(options FetchOptions) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: options.Timeout,
		},
		options: options,
	}
}

// FetchResult contains the fetched transcript and metadata
type FetchResult struct {
	Content     string
	Format      Format
	ContentType string
	Size        int64
}

// Fetch downloads a transcript from the given URL.
// typeHint is the MIME type announced by the feed, if any.
func (f *Fetcher) Fetch(ctx context.Context, url, typeHint string) (*FetchResult, error) {
	if url == "" {
		return nil, fmt.Errorf("empty transcript URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.options.UserAgent)
	req.Header.Set("Accept", "text/vtt,application/x-subrip,application/json,text/plain,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if f.options.MaxSize > 0 && resp.ContentLength > f.options.MaxSize {
		return nil, fmt.Errorf("transcript too large: %d bytes (max: %d)", resp.ContentLength, f.options.MaxSize)
	}

	reader := io.Reader(resp.Body)
	if f.options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, f.options.MaxSize)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	if typeHint != "" {
		contentType = typeHint
	}

	return &FetchResult{
		Content:     content,
		Format:      DetectFormat(url, contentType, content),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// DetectFormat determines the transcript format from URL, content type, and content
func DetectFormat(url, contentType, content string) Format {
	urlLower := strings.ToLower(url)
	if idx := strings.IndexAny(urlLower, "?#"); idx >= 0 {
		urlLower = urlLower[:idx]
	}
	switch {
	case strings.HasSuffix(urlLower, ".vtt"):
		return FormatVTT
	case strings.HasSuffix(urlLower, ".srt"):
		return FormatSRT
	case strings.HasSuffix(urlLower, ".json"):
		return FormatJSON
	case strings.HasSuffix(urlLower, ".txt"):
		return FormatText
	}

	contentTypeLower := strings.ToLower(contentType)
	switch {
	case strings.Contains(contentTypeLower, "vtt"):
		return FormatVTT
	case strings.Contains(contentTypeLower, "subrip"), strings.Contains(contentTypeLower, "srt"):
		return FormatSRT
	case strings.Contains(contentTypeLower, "json"):
		return FormatJSON
	}

	head := strings.TrimSpace(content[:min(100, len(content))])
	switch {
	case strings.HasPrefix(head, "WEBVTT"):
		return FormatVTT
	case strings.Contains(head, "-->"):
		if strings.Contains(content[:min(1000, len(content))], "WEBVTT") {
			return FormatVTT
		}
		return FormatSRT
	case strings.HasPrefix(head, "{"), strings.HasPrefix(head, "["):
		return FormatJSON
	}

	return FormatText
}
