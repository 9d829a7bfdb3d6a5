package recognition

import (
	"fmt"

	"github.com/killallgit/podcast-dl/pkg/config"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// NewFromConfig builds the configured backend and wraps it in an Adapter
func NewFromConfig(cfg *config.Config, audio AudioPreparer, cacheDir string) (*Adapter, error) {
	tc := cfg.Transcription

	device, err := ParseDevice(tc.Device)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch tc.Backend {
	case "", BackendFasterWhisper:
		backend = NewFasterWhisper(tc.PythonPath)
	case BackendWhisperCPP:
		backend = NewWhisperCPP(WhisperCPPOptions{
			Binary:   tc.WhisperPath,
			ModelDir: tc.ModelDir,
			VADModel: tc.VADModel,
			Threads:  tc.Threads,
		}, audio)
	default:
		return nil, apperrors.ConfigError("transcription.backend", fmt.Sprintf("unknown backend %q", tc.Backend))
	}

	return NewAdapter(backend, NewNvidiaSMIProbe(), AdapterOptions{Device: device, CacheDir: cacheDir}), nil
}
