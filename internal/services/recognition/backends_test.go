package recognition

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/ffmpeg"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

func drain(t *testing.T, stream SegmentStream) ([]transcript.Segment, error) {
	t.Helper()
	defer stream.Close()
	var segs []transcript.Segment
	for stream.Next() {
		segs = append(segs, stream.Segment())
	}
	return segs, stream.Err()
}

func loadOptions() LoadOptions {
	return LoadOptions{Size: ModelSmall, Device: DeviceCPU, Compute: ComputeInt8, CacheDir: "/models"}
}

func TestFasterWhisper_Transcribe(t *testing.T) {
	calls := fakeCommands(t, "fw-success")

	model, err := NewFasterWhisper("").Load(context.Background(), loadOptions())
	require.NoError(t, err)
	defer model.Close()

	info, stream, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions(""))
	require.NoError(t, err)
	assert.Equal(t, Info{Language: "en", LanguageProbability: 0.97, Duration: 12.5}, info)

	segs, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Segment{
		{Start: 0, End: 4.2, Text: " Hello there."},
		{Start: 4.2, End: 9.8, Text: " Welcome to the show."},
	}, segs)

	recorded := calls()
	require.Len(t, recorded, 2)
	assert.Equal(t, "/usr/bin/python3", recorded[0][0])
	assert.Contains(t, recorded[0], "--check")

	args := recorded[1]
	for _, pair := range [][2]string{
		{"--audio", "/audio/ep.mp3"},
		{"--model", "small"},
		{"--device", "cpu"},
		{"--compute-type", "int8"},
		{"--beam-size", "5"},
		{"--download-root", "/models"},
		{"--min-silence-ms", "500"},
	} {
		i := slices.Index(args, pair[0])
		require.GreaterOrEqual(t, i, 0, "missing %s", pair[0])
		assert.Equal(t, pair[1], args[i+1])
	}
	assert.Contains(t, args, "--vad")
	assert.NotContains(t, args, "--language")
}

func TestFasterWhisper_HelperScriptRemovedOnClose(t *testing.T) {
	fakeCommands(t, "fw-success")

	model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
	require.NoError(t, err)

	dir := model.(*fasterWhisperModel).dir
	_, err = os.Stat(filepath.Join(dir, "faster_whisper_helper.py"))
	require.NoError(t, err)

	require.NoError(t, model.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFasterWhisper_Failures(t *testing.T) {
	t.Run("interpreter missing", func(t *testing.T) {
		fakeCommands(t, "fw-success")
		lookPath = func(string) (string, error) { return "", os.ErrNotExist }

		_, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
	})

	t.Run("module missing", func(t *testing.T) {
		fakeCommands(t, "fw-no-module")

		_, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
		assert.Contains(t, err.Error(), "No module named")
	})

	t.Run("model load", func(t *testing.T) {
		fakeCommands(t, "fw-model")

		model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.NoError(t, err)
		defer model.Close()

		_, _, err = model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions("en"))
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
	})

	t.Run("decode", func(t *testing.T) {
		fakeCommands(t, "fw-decode")

		model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.NoError(t, err)
		defer model.Close()

		_, _, err = model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions("en"))
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
		assert.Contains(t, err.Error(), "invalid data")
	})

	t.Run("mid stream", func(t *testing.T) {
		fakeCommands(t, "fw-midstream")

		model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.NoError(t, err)
		defer model.Close()

		_, stream, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions(""))
		require.NoError(t, err)

		segs, err := drain(t, stream)
		assert.Len(t, segs, 1)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
	})
}

// transcribeWithin fails the test if the oversized output stalls the stream
func transcribeWithin(t *testing.T, d time.Duration, run func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- run() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatal("transcription did not return")
		return nil
	}
}

func TestFasterWhisper_OversizedLine(t *testing.T) {
	t.Run("after info", func(t *testing.T) {
		fakeCommands(t, "fw-long-line")

		model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.NoError(t, err)
		defer model.Close()

		var segs []transcript.Segment
		err = transcribeWithin(t, 10*time.Second, func() error {
			_, stream, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions(""))
			if err != nil {
				return err
			}
			segs, err = drain(t, stream)
			return err
		})
		assert.Len(t, segs, 1)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
		assert.ErrorIs(t, err, bufio.ErrTooLong)
	})

	t.Run("before info", func(t *testing.T) {
		fakeCommands(t, "fw-long-preamble")

		model, err := NewFasterWhisper("python3").Load(context.Background(), loadOptions())
		require.NoError(t, err)
		defer model.Close()

		err = transcribeWithin(t, 10*time.Second, func() error {
			_, _, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions(""))
			return err
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
		assert.ErrorIs(t, err, bufio.ErrTooLong)
	})

	t.Run("through adapter", func(t *testing.T) {
		fakeCommands(t, "fw-long-line")

		adapter := NewAdapter(NewFasterWhisper("python3"), StaticProbe(0), AdapterOptions{})
		defer adapter.Close()
		path := audioFile(t)

		err := transcribeWithin(t, 10*time.Second, func() error {
			_, err := adapter.Transcribe(context.Background(), Request{AudioPath: path, ModelSize: "tiny"}, nil)
			return err
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
	})
}

func TestAdapter_WithFasterWhisper(t *testing.T) {
	fakeCommands(t, "fw-success")

	adapter := NewAdapter(NewFasterWhisper("python3"), StaticProbe(0), AdapterOptions{})
	defer adapter.Close()

	var last Progress
	result, err := adapter.Transcribe(context.Background(), Request{AudioPath: audioFile(t), ModelSize: "tiny"},
		func(p Progress) { last = p })
	require.NoError(t, err)

	assert.Equal(t, "en", result.Language)
	assert.Equal(t, "Hello there.\nWelcome to the show.", result.AsText())
	assert.Equal(t, Progress{Position: 12.5, Duration: 12.5}, last)
}

type fakeAudio struct {
	duration    float64
	binariesErr error
	invalid     error
	validated   []string
	converted   []string
}

func (f *fakeAudio) ValidateBinaries() error {
	return f.binariesErr
}

func (f *fakeAudio) ValidateAudioFile(_ context.Context, path string) (float64, error) {
	f.validated = append(f.validated, path)
	if f.invalid != nil {
		return 0, f.invalid
	}
	return f.duration, nil
}

func (f *fakeAudio) ConvertToWAV(_ context.Context, input, output string) error {
	f.converted = append(f.converted, input)
	return os.WriteFile(output, []byte("RIFF"), 0o644)
}

func whisperCPPBackend(t *testing.T, vad bool) (*WhisperCPP, *fakeAudio) {
	t.Helper()
	modelDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "ggml-small.bin"), []byte("ggml"), 0o644))

	opts := WhisperCPPOptions{ModelDir: modelDir, Threads: 2}
	if vad {
		opts.VADModel = filepath.Join(modelDir, "ggml-silero.bin")
		require.NoError(t, os.WriteFile(opts.VADModel, []byte("vad"), 0o644))
	}
	audio := &fakeAudio{duration: 62.25}
	return NewWhisperCPP(opts, audio), audio
}

func TestWhisperCPP_DetectsLanguage(t *testing.T) {
	calls := fakeCommands(t, "wcpp-success")
	backend, audio := whisperCPPBackend(t, false)

	model, err := backend.Load(context.Background(), loadOptions())
	require.NoError(t, err)

	info, stream, err := model.Transcribe(context.Background(), "/audio/folge.mp3", DefaultDecodeOptions(""))
	require.NoError(t, err)
	assert.Equal(t, "de", info.Language)
	assert.InDelta(t, 0.912345, info.LanguageProbability, 1e-9)
	assert.Equal(t, 62.25, info.Duration)
	assert.Equal(t, []string{"/audio/folge.mp3"}, audio.converted)

	segs, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Segment{
		{Start: 0, End: 3.5, Text: "Guten Tag."},
		{Start: 3.5, End: 62.25, Text: "Willkommen zur Sendung."},
	}, segs)

	recorded := calls()
	require.Len(t, recorded, 2)
	assert.Contains(t, recorded[0], "--detect-language")

	run := recorded[1]
	assert.Equal(t, "/usr/bin/whisper-cli", run[0])
	assert.Equal(t, "de", run[slices.Index(run, "-l")+1])
	assert.Equal(t, "5", run[slices.Index(run, "-bs")+1])
	assert.Equal(t, "2", run[slices.Index(run, "-t")+1])
	assert.Contains(t, run, "-ng")
	assert.NotContains(t, run, "--vad")

	wav := run[slices.Index(run, "-f")+1]
	_, err = os.Stat(wav)
	assert.True(t, os.IsNotExist(err), "converted audio is removed with the stream")
}

func TestWhisperCPP_ForcedLanguageAndVAD(t *testing.T) {
	calls := fakeCommands(t, "wcpp-success")
	backend, _ := whisperCPPBackend(t, true)

	opts := loadOptions()
	opts.Device = DeviceCUDA
	model, err := backend.Load(context.Background(), opts)
	require.NoError(t, err)

	info, stream, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions("en"))
	require.NoError(t, err)
	assert.Equal(t, "en", info.Language)
	_, err = drain(t, stream)
	require.NoError(t, err)

	recorded := calls()
	require.Len(t, recorded, 1, "no detection pass when the language is forced")
	run := recorded[0]
	assert.NotContains(t, run, "-ng")
	assert.Contains(t, run, "--vad")
	assert.Equal(t, "500", run[slices.Index(run, "-vsd")+1])
}

func TestWhisperCPP_Failures(t *testing.T) {
	t.Run("model file missing", func(t *testing.T) {
		fakeCommands(t, "wcpp-success")
		backend := NewWhisperCPP(WhisperCPPOptions{ModelDir: t.TempDir()}, &fakeAudio{})

		_, err := backend.Load(context.Background(), loadOptions())
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
	})

	t.Run("binary missing", func(t *testing.T) {
		fakeCommands(t, "wcpp-success")
		lookPath = func(string) (string, error) { return "", os.ErrNotExist }
		backend, _ := whisperCPPBackend(t, false)

		_, err := backend.Load(context.Background(), loadOptions())
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
	})

	t.Run("ffmpeg missing", func(t *testing.T) {
		calls := fakeCommands(t, "wcpp-success")
		backend, audio := whisperCPPBackend(t, false)
		audio.binariesErr = ffmpeg.ErrFFmpegNotFound

		_, err := backend.Load(context.Background(), loadOptions())
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeBackendUnavailable))
		assert.ErrorIs(t, err, ffmpeg.ErrFFmpegNotFound)
		assert.Empty(t, calls())
	})

	t.Run("unreadable audio", func(t *testing.T) {
		calls := fakeCommands(t, "wcpp-success")
		backend, audio := whisperCPPBackend(t, false)
		audio.invalid = ffmpeg.ErrInvalidAudioFile

		model, err := backend.Load(context.Background(), loadOptions())
		require.NoError(t, err)

		_, _, err = model.Transcribe(context.Background(), "/audio/cover.jpg", DefaultDecodeOptions(""))
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
		assert.ErrorIs(t, err, ffmpeg.ErrInvalidAudioFile)
		assert.Equal(t, []string{"/audio/cover.jpg"}, audio.validated)
		assert.Empty(t, audio.converted)
		assert.Empty(t, calls(), "whisper-cli never runs on unreadable audio")
	})

	t.Run("process fails", func(t *testing.T) {
		fakeCommands(t, "wcpp-fail")
		backend, _ := whisperCPPBackend(t, false)

		model, err := backend.Load(context.Background(), loadOptions())
		require.NoError(t, err)

		info, stream, err := model.Transcribe(context.Background(), "/audio/ep.mp3", DefaultDecodeOptions(""))
		require.NoError(t, err)
		assert.Empty(t, info.Language, "failed detection leaves the language empty")

		_, err = drain(t, stream)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
		assert.Contains(t, err.Error(), "failed to read WAV")
	})
}

func TestParseWhisperLine(t *testing.T) {
	seg, ok, err := parseWhisperLine("[00:01:02.500 --> 00:01:05.000]  So here we are.")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, transcript.Segment{Start: 62.5, End: 65, Text: "So here we are."}, seg)

	_, ok, err = parseWhisperLine("whisper_print_timings: total time = 1234.56 ms")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseDetectedLanguage(t *testing.T) {
	lang, p := parseDetectedLanguage("whisper_full_with_state: auto-detected language: ja (p = 0.734)\n")
	assert.Equal(t, "ja", lang)
	assert.InDelta(t, 0.734, p, 1e-9)

	lang, _ = parseDetectedLanguage("nothing useful")
	assert.Empty(t, lang)
}

func TestTailBuffer(t *testing.T) {
	buf := newTailBuffer(8)
	_, _ = buf.Write([]byte("0123456789"))
	_, _ = buf.Write([]byte("ab"))
	assert.Equal(t, "456789ab", buf.String())
}
