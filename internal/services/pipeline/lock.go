package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// acquireLock takes the exclusive run lock for dir, creating dir if needed.
// The returned func releases it.
func acquireLock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.ConfigError("output.dir", fmt.Sprintf("cannot create %s: %v", dir, err))
	}

	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "acquire output lock")
	}
	if !ok {
		return nil, apperrors.OutputLocked(dir)
	}

	slog.Debug("Acquired output lock", "path", path)
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release output lock", "path", path, "error", err)
		}
	}, nil
}
