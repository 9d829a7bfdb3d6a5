package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// Request is one transcription job
type Request struct {
	AudioPath string
	// ModelSize defaults to large-v3
	ModelSize string
	// Language forces a language; empty means detect
	Language string
	// Compute forces a compute profile; empty means choose from hardware
	Compute string
}

// Progress reports how far decoding has reached, both in seconds
type Progress struct {
	Position float64
	Duration float64
}

// Fraction returns the completed share in [0, 1], or -1 when the duration is unknown
func (p Progress) Fraction() float64 {
	if p.Duration <= 0 {
		return -1
	}
	if p.Position >= p.Duration {
		return 1
	}
	return p.Position / p.Duration
}

// ProgressFunc observes decoding progress
type ProgressFunc func(Progress)

// AdapterOptions configures an Adapter
type AdapterOptions struct {
	Device   Device
	CacheDir string
}

// Adapter turns audio files into transcript results using a Backend.
// The loaded model is kept between requests that use the same settings.
type Adapter struct {
	backend Backend
	probe   HardwareProbe
	opts    AdapterOptions

	mu      sync.Mutex
	model   Model
	loadKey LoadOptions
}

// NewAdapter creates an adapter
func NewAdapter(backend Backend, probe HardwareProbe, opts AdapterOptions) *Adapter {
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}
	return &Adapter{backend: backend, probe: probe, opts: opts}
}

// Backend returns the backend name
func (a *Adapter) Backend() string {
	return a.backend.Name()
}

// Transcribe decodes req.AudioPath and returns a frozen result. Segments are
// appended in the order the backend emits them and progress is reported after
// each one.
func (a *Adapter) Transcribe(ctx context.Context, req Request, progress ProgressFunc) (*transcript.Result, error) {
	size, err := ParseModelSize(req.ModelSize)
	if err != nil {
		return nil, err
	}
	compute, err := ParseComputeProfile(req.Compute)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, apperrors.DecodeFailed(req.AudioPath, err)
	}
	if info.IsDir() {
		return nil, apperrors.DecodeFailed(req.AudioPath, fmt.Errorf("is a directory"))
	}

	device, compute := ResolveCompute(ctx, a.probe, a.opts.Device, compute)
	slog.Info("Loading model", "backend", a.backend.Name(), "model", size, "device", device, "compute", compute)

	model, err := a.loadModel(ctx, LoadOptions{Size: size, Device: device, Compute: compute, CacheDir: a.opts.CacheDir})
	if err != nil {
		return nil, err
	}

	language := strings.TrimSpace(req.Language)
	audio, stream, err := model.Transcribe(ctx, req.AudioPath, DefaultDecodeOptions(language))
	if err != nil {
		return nil, a.classify(ctx, req.AudioPath, err)
	}
	defer stream.Close()

	slog.Info("Detected language", "language", audio.Language,
		"probability", audio.LanguageProbability, "duration", transcript.FormatClock(audio.Duration))

	if audio.Language != "" {
		language = audio.Language
	}
	result := transcript.NewResult(language)

	var position float64
	for stream.Next() {
		seg := stream.Segment()
		if err := result.Append(seg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "append segment")
		}
		if seg.End > position {
			position = seg.End
		}
		if progress != nil {
			progress(Progress{Position: position, Duration: audio.Duration})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, a.classify(ctx, req.AudioPath, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if progress != nil && audio.Duration > position {
		progress(Progress{Position: audio.Duration, Duration: audio.Duration})
	}

	result.Freeze()
	slog.Debug("Transcription finished", "path", req.AudioPath, "segments", result.Len())
	return result, nil
}

// Close releases the cached model
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model == nil {
		return nil
	}
	err := a.model.Close()
	a.model = nil
	return err
}

func (a *Adapter) loadModel(ctx context.Context, opts LoadOptions) (Model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.model != nil && a.loadKey == opts {
		return a.model, nil
	}
	if a.model != nil {
		_ = a.model.Close()
		a.model = nil
	}

	model, err := a.backend.Load(ctx, opts)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.BackendUnavailable(a.backend.Name(), err)
	}
	a.model = model
	a.loadKey = opts
	return model, nil
}

// classify maps backend failures onto the error taxonomy. Cancellation is
// returned as the context error so callers can tell it apart from failures.
func (a *Adapter) classify(ctx context.Context, audioPath string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.DecodeFailed(audioPath, err)
}
