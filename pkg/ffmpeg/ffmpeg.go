package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// FFmpeg wraps ffmpeg and ffprobe functionality
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFmpeg instance. Empty paths fall back to the binaries on PATH.
func New(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ValidateBinaries reports the first of ffmpeg and ffprobe missing from PATH
func (f *FFmpeg) ValidateBinaries() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, f.ffmpegPath)
	}
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, f.ffprobePath)
	}
	return nil
}

// ConvertToWAV decodes inputPath into a 16 kHz mono PCM WAV at outputPath.
// The file is written to a temporary sibling and renamed once ffmpeg succeeds.
func (f *FFmpeg) ConvertToWAV(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return NewProcessingError("wav_conversion", inputPath, err, "")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return NewProcessingError("wav_conversion", inputPath, err, "")
	}

	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	tmpPath := outputPath + ".tmp.wav"
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",                                 // Drop cover art and video
		"-ar", strconv.Itoa(SpeechSampleRate), // 16kHz sample rate
		"-ac", strconv.Itoa(SpeechChannels), // Mono
		"-c:a", "pcm_s16le", // PCM 16-bit little-endian
		"-y", // Overwrite output
		tmpPath,
	}

	slog.Debug("Converting audio for recognition", "input", inputPath, "output", outputPath)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(tmpPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrProcessingTimeout
		}
		return NewProcessingError("wav_conversion", inputPath, err, stderr.String())
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return NewProcessingError("wav_conversion", inputPath, err, "")
	}
	return nil
}

func (f *FFmpeg) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout > 0 {
		return context.WithTimeout(ctx, f.timeout)
	}
	return context.WithCancel(ctx)
}
