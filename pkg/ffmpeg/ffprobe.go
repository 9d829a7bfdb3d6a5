package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// probeEntries limits ffprobe output to what recognition reads
const probeEntries = "format=duration:stream=codec_type,codec_name,sample_rate,channels,duration"

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe reads the first audio stream of filePath with ffprobe
func (f *FFmpeg) Probe(ctx context.Context, filePath string) (*AudioInfo, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", probeEntries,
		"-of", "json",
		filePath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, NewProcessingError("probe", filePath, err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, NewProcessingError("probe", filePath, err, "")
	}
	return out.audioInfo(), nil
}

// audioInfo picks the audio stream; the container duration wins over the stream's
func (o *probeOutput) audioInfo() *AudioInfo {
	info := &AudioInfo{Duration: parseSeconds(o.Format.Duration)}
	for _, s := range o.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		if info.Duration == 0 {
			info.Duration = parseSeconds(s.Duration)
		}
		break
	}
	return info
}

func parseSeconds(value string) float64 {
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return secs
}

// ValidateAudioFile checks that filePath holds a decodable audio stream and
// returns its duration in seconds
func (f *FFmpeg) ValidateAudioFile(ctx context.Context, filePath string) (float64, error) {
	info, err := f.Probe(ctx, filePath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAudioFile, err)
	}
	if info.Codec == "" {
		return 0, fmt.Errorf("%w: no audio stream", ErrInvalidAudioFile)
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("%w: could not determine duration", ErrInvalidAudioFile)
	}
	return info.Duration, nil
}
