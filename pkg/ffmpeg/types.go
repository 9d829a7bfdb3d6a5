package ffmpeg

// AudioInfo describes the first audio stream of a file
type AudioInfo struct {
	Duration   float64 // seconds
	Codec      string
	SampleRate int
	Channels   int
}

// Speech recognizers expect 16 kHz mono 16-bit PCM
const (
	SpeechSampleRate = 16000
	SpeechChannels   = 1
)
