package recognition

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/killallgit/podcast-dl/pkg/config"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

//go:embed assets/faster_whisper_helper.py
var fasterWhisperHelper []byte

// BackendFasterWhisper is the name of the faster-whisper backend
const BackendFasterWhisper = config.BackendFasterWhisper

// Helper exit codes
const (
	helperExitImport = 2
	helperExitDecode = 3
	helperExitModel  = 4
)

// FasterWhisper runs faster-whisper through a Python helper process
type FasterWhisper struct {
	python string
}

// NewFasterWhisper creates the backend. An empty interpreter means python3.
func NewFasterWhisper(python string) *FasterWhisper {
	if python == "" {
		python = "python3"
	}
	return &FasterWhisper{python: python}
}

// Name implements Backend
func (f *FasterWhisper) Name() string {
	return BackendFasterWhisper
}

// Load implements Backend. It writes the helper script to a private
// directory and checks that faster-whisper can be imported.
func (f *FasterWhisper) Load(ctx context.Context, opts LoadOptions) (Model, error) {
	python, err := lookPath(f.python)
	if err != nil {
		return nil, apperrors.BackendUnavailable(BackendFasterWhisper, fmt.Errorf("python interpreter %q not found: %w", f.python, err))
	}

	dir, err := os.MkdirTemp("", "podcast-dl-fw-")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create helper directory")
	}
	script := filepath.Join(dir, "faster_whisper_helper.py")
	if err := os.WriteFile(script, fasterWhisperHelper, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "write helper script")
	}

	check := newTailBuffer(4096)
	cmd := commandContext(ctx, python, script, "--check")
	cmd.Stderr = check
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, apperrors.BackendUnavailable(BackendFasterWhisper, helperFailure(err, check.String()))
	}

	return &fasterWhisperModel{python: python, script: script, dir: dir, opts: opts}, nil
}

type fasterWhisperModel struct {
	python string
	script string
	dir    string
	opts   LoadOptions
}

type helperEvent struct {
	Type                string  `json:"type"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
	Start               float64 `json:"start"`
	End                 float64 `json:"end"`
	Text                string  `json:"text"`
}

func (m *fasterWhisperModel) args(audioPath string, opts DecodeOptions) []string {
	args := []string{
		m.script,
		"--audio", audioPath,
		"--model", string(m.opts.Size),
		"--device", string(m.opts.Device),
		"--compute-type", string(m.opts.Compute),
		"--beam-size", strconv.Itoa(opts.BeamSize),
	}
	if m.opts.CacheDir != "" {
		args = append(args, "--download-root", m.opts.CacheDir)
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.VADFilter {
		args = append(args, "--vad", "--min-silence-ms", strconv.FormatInt(opts.MinSilence.Milliseconds(), 10))
	}
	return args
}

// Transcribe starts the helper and waits for its info line. Segments are
// read lazily from the returned stream.
func (m *fasterWhisperModel) Transcribe(ctx context.Context, audioPath string, opts DecodeOptions) (Info, SegmentStream, error) {
	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(cmdCtx, m.python, m.args(audioPath, opts)...)
	stderr := newTailBuffer(8192)
	cmd.Stderr = stderr

	scanner, err := newScanner(cmd)
	if err != nil {
		cancel()
		return Info{}, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "attach helper output")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return Info{}, nil, apperrors.BackendUnavailable(BackendFasterWhisper, err)
	}

	onExit := func(waitErr error, tail string) error {
		return m.exitError(audioPath, waitErr, tail)
	}

	for scanner.Scan() {
		var ev helperEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			slog.Debug("faster-whisper helper output", "line", scanner.Text())
			continue
		}
		if ev.Type != "info" {
			continue
		}
		info := Info{Language: ev.Language, LanguageProbability: ev.LanguageProbability, Duration: ev.Duration}
		stream := &processStream{
			audioPath: audioPath,
			cmd:       cmd,
			cancel:    cancel,
			scanner:   scanner,
			stderr:    stderr,
			decode:    decodeHelperSegment,
			onExit:    onExit,
		}
		return info, stream, nil
	}

	if scanErr := scanner.Err(); scanErr != nil {
		cancel()
		_ = cmd.Wait()
		return Info{}, nil, apperrors.DecodeFailed(audioPath, scanErr)
	}
	waitErr := cmd.Wait()
	cancel()
	if waitErr != nil {
		return Info{}, nil, onExit(waitErr, stderr.String())
	}
	return Info{}, nil, apperrors.DecodeFailed(audioPath, errors.New("helper exited without reporting audio info"))
}

func (m *fasterWhisperModel) exitError(audioPath string, waitErr error, tail string) error {
	cause := helperFailure(waitErr, tail)
	switch exitCode(waitErr) {
	case helperExitImport, helperExitModel:
		return apperrors.BackendUnavailable(BackendFasterWhisper, cause)
	default:
		return apperrors.DecodeFailed(audioPath, cause)
	}
}

func (m *fasterWhisperModel) Close() error {
	return os.RemoveAll(m.dir)
}

func decodeHelperSegment(line string) (transcript.Segment, bool, error) {
	var ev helperEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		slog.Debug("faster-whisper helper output", "line", line)
		return transcript.Segment{}, false, nil
	}
	if ev.Type != "segment" {
		return transcript.Segment{}, false, nil
	}
	return transcript.Segment{Start: ev.Start, End: ev.End, Text: ev.Text}, true, nil
}

func helperFailure(err error, stderr string) error {
	if stderr == "" {
		return err
	}
	lines := strings.Split(stderr, "\n")
	return fmt.Errorf("%w: %s", err, strings.TrimSpace(lines[len(lines)-1]))
}
