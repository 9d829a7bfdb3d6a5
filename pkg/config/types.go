package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Output        OutputConfig        `mapstructure:"output"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Download      DownloadConfig      `mapstructure:"download"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	FFmpeg        FFmpegConfig        `mapstructure:"ffmpeg"`
	History       HistoryConfig       `mapstructure:"history"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// OutputConfig controls where audio and transcripts are written
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`    // Empty means ~/Downloads/podcast-dl
	Format       string `mapstructure:"format"` // txt, srt, json or all
	SkipExisting bool   `mapstructure:"skip_existing"`
}

// CacheConfig contains cache directory settings
type CacheConfig struct {
	Dir        string        `mapstructure:"dir"` // Empty means the user cache dir
	PartMaxAge time.Duration `mapstructure:"part_max_age"`
}

// DownloadConfig contains audio transfer settings
type DownloadConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxSize        int64         `mapstructure:"max_size"`        // Bytes, 0 = unlimited
	ValidateAudio  bool          `mapstructure:"validate_audio"`  // Reject non-audio content types
	BandwidthLimit int64         `mapstructure:"bandwidth_limit"` // Bytes per second, 0 = unlimited
}

// TranscriptionConfig contains speech recognition settings
type TranscriptionConfig struct {
	Backend         string        `mapstructure:"backend"` // faster-whisper or whisper-cpp
	Model           string        `mapstructure:"model"`
	Language        string        `mapstructure:"language"`     // Empty = auto-detect
	ComputeType     string        `mapstructure:"compute_type"` // Empty = hardware policy
	Device          string        `mapstructure:"device"`       // auto, cpu or cuda
	PreferPublished bool          `mapstructure:"prefer_published"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	PythonPath      string        `mapstructure:"python_path"`
	WhisperPath     string        `mapstructure:"whisper_path"`
	ModelDir        string        `mapstructure:"model_dir"` // ggml models for whisper-cpp
	VADModel        string        `mapstructure:"vad_model"`
	Threads         int           `mapstructure:"threads"`
}

// FFmpegConfig locates the media tools
type FFmpegConfig struct {
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	FFprobePath string        `mapstructure:"ffprobe_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// HistoryConfig contains the run ledger settings
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // Empty means <cache>/history.db
	Verbose bool   `mapstructure:"verbose"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}
