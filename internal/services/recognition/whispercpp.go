package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/killallgit/podcast-dl/pkg/config"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// BackendWhisperCPP is the name of the whisper.cpp backend
const BackendWhisperCPP = config.BackendWhisperCPP

var (
	whisperLinePattern     = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2}[.,]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[.,]\d{3})\]\s*(.*)$`)
	detectedLanguageRegexp = regexp.MustCompile(`auto-detected language:\s*([a-z]{2,3})\s*\(p\s*=\s*([0-9.]+)\)`)
)

// AudioPreparer checks and converts audio before recognition.
// *ffmpeg.FFmpeg implements it.
type AudioPreparer interface {
	ValidateBinaries() error
	// ValidateAudioFile returns the duration of a decodable audio file
	ValidateAudioFile(ctx context.Context, path string) (float64, error)
	ConvertToWAV(ctx context.Context, inputPath, outputPath string) error
}

// WhisperCPPOptions configures the whisper.cpp backend
type WhisperCPPOptions struct {
	Binary   string
	ModelDir string
	// VADModel enables voice activity detection when set
	VADModel string
	Threads  int
}

// WhisperCPP runs recognition through the whisper-cli binary
type WhisperCPP struct {
	opts  WhisperCPPOptions
	audio AudioPreparer
}

// NewWhisperCPP creates the backend
func NewWhisperCPP(opts WhisperCPPOptions, audio AudioPreparer) *WhisperCPP {
	if opts.Binary == "" {
		opts.Binary = "whisper-cli"
	}
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	return &WhisperCPP{opts: opts, audio: audio}
}

// Name implements Backend
func (w *WhisperCPP) Name() string {
	return BackendWhisperCPP
}

// ModelPath returns where the ggml weights for size are expected
func (w *WhisperCPP) ModelPath(size ModelSize) string {
	return filepath.Join(w.opts.ModelDir, fmt.Sprintf("ggml-%s.bin", size))
}

// Load implements Backend
func (w *WhisperCPP) Load(_ context.Context, opts LoadOptions) (Model, error) {
	binary, err := lookPath(w.opts.Binary)
	if err != nil {
		return nil, apperrors.BackendUnavailable(BackendWhisperCPP, fmt.Errorf("%s not found: %w", w.opts.Binary, err))
	}
	if err := w.audio.ValidateBinaries(); err != nil {
		return nil, apperrors.BackendUnavailable(BackendWhisperCPP, err)
	}

	modelPath := w.ModelPath(opts.Size)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperrors.BackendUnavailable(BackendWhisperCPP, fmt.Errorf("model file: %w", err)).
			WithDetail("model_path", modelPath)
	}
	if w.opts.VADModel != "" {
		if _, err := os.Stat(w.opts.VADModel); err != nil {
			return nil, apperrors.BackendUnavailable(BackendWhisperCPP, fmt.Errorf("vad model file: %w", err))
		}
	}

	if opts.Compute != "" {
		slog.Debug("whisper.cpp picks its own precision, ignoring compute profile", "compute", opts.Compute)
	}

	return &whisperCPPModel{binary: binary, modelPath: modelPath, backend: w, device: opts.Device}, nil
}

type whisperCPPModel struct {
	binary    string
	modelPath string
	backend   *WhisperCPP
	device    Device
}

func (m *whisperCPPModel) baseArgs(wavPath string) []string {
	args := []string{"-m", m.modelPath, "-f", wavPath, "-t", strconv.Itoa(m.backend.opts.Threads)}
	if m.device == DeviceCPU {
		args = append(args, "-ng")
	}
	return args
}

// Transcribe checks the audio, converts it to 16kHz mono WAV, detects the
// language if needed and starts whisper-cli. The WAV is removed when the
// stream closes.
func (m *whisperCPPModel) Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (Info, SegmentStream, error) {
	duration, err := m.backend.audio.ValidateAudioFile(ctx, audioPath)
	if err != nil {
		return Info{}, nil, apperrors.DecodeFailed(audioPath, err)
	}
	info := Info{Duration: duration}

	workDir, err := os.MkdirTemp("", "podcast-dl-wcpp-")
	if err != nil {
		return Info{}, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create work directory")
	}
	cleanup := func() { _ = os.RemoveAll(workDir) }

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := m.backend.audio.ConvertToWAV(ctx, audioPath, wavPath); err != nil {
		cleanup()
		return Info{}, nil, apperrors.DecodeFailed(audioPath, err)
	}

	info.Language = opts.Language
	info.LanguageProbability = 1
	if info.Language == "" {
		info.Language, info.LanguageProbability = m.detectLanguage(ctx, wavPath)
	}

	args := append(m.baseArgs(wavPath), "-np", "-bs", strconv.Itoa(opts.BeamSize))
	if info.Language != "" {
		args = append(args, "-l", info.Language)
	} else {
		args = append(args, "-l", "auto")
	}
	if opts.VADFilter && m.backend.opts.VADModel != "" {
		args = append(args, "--vad", "-vm", m.backend.opts.VADModel,
			"-vsd", strconv.FormatInt(opts.MinSilence.Milliseconds(), 10))
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(cmdCtx, m.binary, args...)
	stderr := newTailBuffer(8192)
	cmd.Stderr = stderr

	scanner, err := newScanner(cmd)
	if err != nil {
		cancel()
		cleanup()
		return Info{}, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "attach whisper-cli output")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		cleanup()
		return Info{}, nil, apperrors.BackendUnavailable(BackendWhisperCPP, err)
	}

	stream := &processStream{
		audioPath: audioPath,
		cmd:       cmd,
		cancel:    cancel,
		scanner:   scanner,
		stderr:    stderr,
		decode:    parseWhisperLine,
		onExit: func(waitErr error, tail string) error {
			return apperrors.DecodeFailed(audioPath, helperFailure(waitErr, tail))
		},
		cleanup: cleanup,
	}
	return info, stream, nil
}

// detectLanguage runs a language-detection-only pass. Failures leave the
// language empty so the main pass falls back to auto.
func (m *whisperCPPModel) detectLanguage(ctx context.Context, wavPath string) (string, float64) {
	args := append(m.baseArgs(wavPath), "-l", "auto", "--detect-language")
	out, err := commandContext(ctx, m.binary, args...).CombinedOutput()
	if err != nil {
		slog.Debug("Language detection failed", "error", err)
		return "", 0
	}
	return parseDetectedLanguage(string(out))
}

func (m *whisperCPPModel) Close() error {
	return nil
}

func parseDetectedLanguage(output string) (string, float64) {
	match := detectedLanguageRegexp.FindStringSubmatch(output)
	if match == nil {
		return "", 0
	}
	probability, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		probability = 0
	}
	return match[1], probability
}

func parseWhisperLine(line string) (transcript.Segment, bool, error) {
	match := whisperLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return transcript.Segment{}, false, nil
	}
	start, err := transcript.ParseTimestamp(match[1])
	if err != nil {
		return transcript.Segment{}, false, err
	}
	end, err := transcript.ParseTimestamp(match[2])
	if err != nil {
		return transcript.Segment{}, false, err
	}
	return transcript.Segment{Start: start, End: end, Text: strings.TrimSpace(match[3])}, true, nil
}
