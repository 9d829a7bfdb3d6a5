package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/killallgit/podcast-dl/pkg/download"
)

// PruneParts removes partial downloads older than maxAge from dir and every
// directory below it. Completed files are never touched. A missing dir is
// not an error.
func PruneParts(dir string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	var removed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		n, err := download.CleanupOldParts(path, maxAge)
		if err != nil {
			return err
		}
		removed += n
		return nil
	})
	return removed, err
}

// Service prunes partial downloads on an interval while a long-lived
// process such as the API server runs
type Service struct {
	dirs     []string
	maxAge   time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service
func NewService(dirs []string, maxAge, interval time.Duration) *Service {
	return &Service{dirs: dirs, maxAge: maxAge, interval: interval}
}

// RunOnce prunes every directory and returns the number of files removed
func (s *Service) RunOnce() int {
	var total int
	for _, dir := range s.dirs {
		n, err := PruneParts(dir, s.maxAge)
		if err != nil {
			slog.Warn("Cleanup failed", "dir", dir, "error", err)
		}
		total += n
	}
	if total > 0 {
		slog.Info("Removed stale partial downloads", "count", total)
	}
	return total
}

// Start runs an initial pass and then prunes on every tick until ctx ends or
// Stop is called
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.RunOnce()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-ctx.Done():
				slog.Debug("Cleanup service stopped")
				return
			}
		}
	}()

	slog.Debug("Cleanup service started", "interval", s.interval, "max_age", s.maxAge)
}

// Stop stops the cleanup service and waits for the loop to exit
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
