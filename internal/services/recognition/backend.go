package recognition

import (
	"context"
	"time"

	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// LoadOptions selects the model a backend loads
type LoadOptions struct {
	Size     ModelSize
	Device   Device
	Compute  ComputeProfile
	CacheDir string
}

// DecodeOptions controls a single decoding pass
type DecodeOptions struct {
	// Language is a BCP-47 style tag; empty asks the model to detect it
	Language   string
	BeamSize   int
	VADFilter  bool
	MinSilence time.Duration
}

// DefaultDecodeOptions returns beam search of width 5 with voice activity
// filtering that splits on 500ms of silence
func DefaultDecodeOptions(language string) DecodeOptions {
	return DecodeOptions{
		Language:   language,
		BeamSize:   5,
		VADFilter:  true,
		MinSilence: 500 * time.Millisecond,
	}
}

// Info describes the audio as seen by the model before segments are produced
type Info struct {
	Language            string
	LanguageProbability float64
	// Duration of the audio in seconds
	Duration float64
}

// SegmentStream yields segments in time order. Next returns false at the end
// of the stream or on error; Err reports which.
type SegmentStream interface {
	Next() bool
	Segment() transcript.Segment
	Err() error
	Close() error
}

// Backend loads recognition models
type Backend interface {
	Name() string
	Load(ctx context.Context, opts LoadOptions) (Model, error)
}

// Model is a loaded recognition model
type Model interface {
	Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (Info, SegmentStream, error)
	Close() error
}
