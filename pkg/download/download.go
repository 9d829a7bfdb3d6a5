package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// ChunkSize is the size of each read from the response body
const ChunkSize = 64 * 1024

// PartSuffix is appended to the destination path while a transfer is in flight
const PartSuffix = ".part"

// DownloadOptions configures the download behavior
type DownloadOptions struct {
	MaxSize        int64         // Maximum file size in bytes (0 = no limit)
	Timeout        time.Duration // Bounds the whole transfer (0 = no limit)
	ProgressFunc   ProgressFunc  // Optional progress callback
	UserAgent      string        // User agent string
	ValidateAudio  bool          // Validate content-type is audio
	BandwidthLimit int64         // Bytes per second (0 = unlimited)
}

// Progress describes the state of a transfer after a chunk was written
type Progress struct {
	Transferred int64
	// Total is -1 when the server did not announce a length
	Total     int64
	Elapsed   time.Duration
	Rate      float64 // bytes per second
	Remaining time.Duration
}

// Fraction returns the completed share in [0, 1], or -1 when the total is unknown
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Transferred) / float64(p.Total)
}

// ProgressFunc is called during download to report progress
type ProgressFunc func(Progress)

// DefaultOptions returns default download options
func DefaultOptions() DownloadOptions {
	return DownloadOptions{
		MaxSize:   0,
		Timeout:   30 * time.Minute,
		UserAgent: "podcast-dl/1.0",
	}
}

// Target pairs a destination with the temporary sibling written during transfer.
// The destination only ever appears through a rename of Temporary.
type Target struct {
	Destination string
	Temporary   string
}

// NewTarget returns the target for a destination path
func NewTarget(destination string) Target {
	return Target{
		Destination: destination,
		Temporary:   destination + PartSuffix,
	}
}

// Downloader streams remote audio files to local storage
type Downloader struct {
	client  *http.Client
	options DownloadOptions
	limiter *rate.Limiter
}

// NewDownloader creates a new downloader with the given options
func NewDownloader(options DownloadOptions) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: options.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true, // Don't compress audio
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		options: options,
	}
	if options.BandwidthLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(options.BandwidthLimit), ChunkSize)
	}
	return d
}

// Fetch downloads sourceURL to destination and returns the destination path.
//
// With skipExisting set and a non-empty file already at destination, Fetch
// returns immediately without touching the network. Otherwise the body is
// streamed into destination+".part" and renamed into place once complete.
// On failure the destination is left untouched and the partial file is kept.
// Progress goes to the ProgressFunc of the downloader's options.
func (d *Downloader) Fetch(ctx context.Context, sourceURL, destination string, skipExisting bool) (string, error) {
	return d.FetchWithProgress(ctx, sourceURL, destination, skipExisting, d.options.ProgressFunc)
}

// FetchWithProgress is Fetch reporting to progress instead of the configured callback
func (d *Downloader) FetchWithProgress(ctx context.Context, sourceURL, destination string, skipExisting bool, progress ProgressFunc) (string, error) {
	target := NewTarget(destination)

	if skipExisting {
		if info, err := os.Stat(destination); err == nil && !info.IsDir() && info.Size() > 0 {
			slog.Debug("Skipping existing file", "path", destination, "size", info.Size())
			return destination, nil
		}
	}

	slog.Debug("Starting download", "url", sourceURL, "path", destination)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", apperrors.TransferFailed(sourceURL, "invalid request", err)
	}
	req.Header.Set("User-Agent", d.options.UserAgent)
	req.Header.Set("Accept", "audio/*,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", apperrors.TransferFailed(sourceURL, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.TransferFailed(sourceURL, fmt.Sprintf("server returned status %d", resp.StatusCode), nil).
			WithDetail("status", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if d.options.ValidateAudio && !isAudioContentType(contentType) {
		return "", apperrors.TransferFailed(sourceURL, fmt.Sprintf("invalid content type: %s", contentType), nil)
	}

	total := resp.ContentLength
	if total < 0 {
		total = -1
	}
	if d.options.MaxSize > 0 && total > d.options.MaxSize {
		return "", apperrors.TransferFailed(sourceURL,
			fmt.Sprintf("file too large: %d bytes (max %d)", total, d.options.MaxSize), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", apperrors.TransferFailed(sourceURL, "cannot create destination directory", err)
	}

	part, err := os.OpenFile(target.Temporary, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", apperrors.TransferFailed(sourceURL, "cannot create partial file", err)
	}

	written, err := d.copyChunks(ctx, part, resp.Body, total, progress)
	if closeErr := part.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", apperrors.TransferFailed(sourceURL, "stream interrupted", err).WithDetail("transferred", written)
	}

	if total >= 0 && written < total {
		return "", apperrors.TransferFailed(sourceURL,
			fmt.Sprintf("short body: received %d of %d bytes", written, total), nil).
			WithDetail("transferred", written)
	}

	if err := os.Rename(target.Temporary, target.Destination); err != nil {
		return "", apperrors.TransferFailed(sourceURL, "cannot move partial file into place", err)
	}

	slog.Debug("Downloaded file", "path", destination, "bytes", written)
	return destination, nil
}

// copyChunks streams src into dst in ChunkSize pieces, reporting progress after each write
func (d *Downloader) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, ChunkSize)
	tracker := newProgressTracker(total, progress)
	var transferred int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return transferred, fmt.Errorf("write failed: %w", err)
			}
			transferred += int64(n)

			if d.options.MaxSize > 0 && transferred > d.options.MaxSize {
				return transferred, fmt.Errorf("file exceeds maximum size of %d bytes", d.options.MaxSize)
			}
			if d.limiter != nil {
				if err := d.limiter.WaitN(ctx, n); err != nil {
					return transferred, fmt.Errorf("transfer interrupted: %w", err)
				}
			}
			tracker.report(transferred)
		}
		if readErr == io.EOF {
			return transferred, nil
		}
		if readErr != nil {
			return transferred, fmt.Errorf("read failed: %w", readErr)
		}
	}
}

// CleanupOldParts removes partial downloads in dir older than maxAge and
// returns how many were removed
func CleanupOldParts(dir string, maxAge time.Duration) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+PartSuffix))
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		slog.Debug("Cleaned up old partial downloads", "dir", dir, "count", removed)
	}

	return removed, nil
}

// isAudioContentType checks if content type is audio
func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "audio/") ||
		contentType == "application/octet-stream" // Some servers use this for audio
}

// progressTracker derives rate and remaining time for progress callbacks
type progressTracker struct {
	total    int64
	started  time.Time
	callback ProgressFunc
}

func newProgressTracker(total int64, callback ProgressFunc) *progressTracker {
	return &progressTracker{total: total, started: time.Now(), callback: callback}
}

func (pt *progressTracker) report(transferred int64) {
	if pt.callback == nil {
		return
	}
	elapsed := time.Since(pt.started)
	p := Progress{
		Transferred: transferred,
		Total:       pt.total,
		Elapsed:     elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Rate = float64(transferred) / secs
	}
	if pt.total > 0 && p.Rate > 0 && transferred < pt.total {
		p.Remaining = time.Duration(float64(pt.total-transferred) / p.Rate * float64(time.Second))
	}
	pt.callback(p)
}
