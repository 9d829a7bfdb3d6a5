package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// EnvPrefix prefixes every environment override, e.g. PODCAST_DL_OUTPUT_DIR
const EnvPrefix = "PODCAST_DL"

// DefaultConfigFile is the project-local settings file
var DefaultConfigFile = filepath.Join("config", "settings.yaml")

// Backend names
const (
	BackendFasterWhisper = "faster-whisper"
	BackendWhisperCPP    = "whisper-cpp"
)

// NewViper returns a viper instance with defaults and environment overrides
// configured. Callers may bind command-line flags to it before calling LoadViper.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from defaults, the settings file and the environment
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper reads the settings file into v, unmarshals and validates the result.
// An explicit path must exist; otherwise the first discovered settings file is used
// and a missing file just means defaults.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	configPath, err := resolveConfigFile(path)
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.ConfigError("config", fmt.Sprintf("error reading config file %s: %v", configPath, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.ConfigError("config", fmt.Sprintf("error unmarshaling config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfigFile returns the settings file to read, or "" when none exists
func resolveConfigFile(path string) (string, error) {
	if path != "" {
		path = filepath.Clean(path)
		if _, err := os.Stat(path); err != nil {
			return "", apperrors.ConfigError("config", fmt.Sprintf("config file %s: %v", path, err))
		}
		return path, nil
	}

	candidates := []string{DefaultConfigFile}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "podcast-dl", "settings.yaml"))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", apperrors.ConfigError("config", fmt.Sprintf("config file %s: %v", candidate, err))
		}
	}
	return "", nil
}

// Validate checks values that would otherwise fail deep inside a run.
// Model sizes and compute profiles are validated by the recognition adapter.
func (c *Config) Validate() error {
	if _, err := transcript.ParseFormats(c.Output.Format); err != nil {
		return err
	}

	switch c.Transcription.Backend {
	case BackendFasterWhisper, BackendWhisperCPP:
	default:
		return apperrors.ConfigError("transcription.backend",
			fmt.Sprintf("unknown backend %q (want %s or %s)", c.Transcription.Backend, BackendFasterWhisper, BackendWhisperCPP))
	}

	switch c.Transcription.Device {
	case "auto", "cpu", "cuda":
	default:
		return apperrors.ConfigError("transcription.device", fmt.Sprintf("unknown device %q (want auto, cpu or cuda)", c.Transcription.Device))
	}

	if c.Transcription.Threads < 0 {
		return apperrors.ConfigError("transcription.threads", "must not be negative")
	}

	durations := map[string]time.Duration{
		"download.timeout":            c.Download.Timeout,
		"transcription.fetch_timeout": c.Transcription.FetchTimeout,
		"ffmpeg.timeout":              c.FFmpeg.Timeout,
		"cache.part_max_age":          c.Cache.PartMaxAge,
		"server.read_timeout":         c.Server.ReadTimeout,
		"server.write_timeout":        c.Server.WriteTimeout,
		"server.shutdown_timeout":     c.Server.ShutdownTimeout,
	}
	for key, d := range durations {
		if d < 0 {
			return apperrors.ConfigError(key, "duration must not be negative")
		}
	}

	if c.Download.MaxSize < 0 {
		return apperrors.ConfigError("download.max_size", "must not be negative")
	}
	if c.Download.BandwidthLimit < 0 {
		return apperrors.ConfigError("download.bandwidth_limit", "must not be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperrors.ConfigError("server.port", fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return apperrors.ConfigError("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return apperrors.ConfigError("logging.format", fmt.Sprintf("unknown format %q (want text or json)", c.Logging.Format))
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Output defaults
	v.SetDefault("output.dir", "")
	v.SetDefault("output.format", string(transcript.FormatText))
	v.SetDefault("output.skip_existing", true)

	// Cache defaults
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.part_max_age", 24*time.Hour)

	// Download defaults
	v.SetDefault("download.timeout", 30*time.Minute)
	v.SetDefault("download.user_agent", "podcast-dl/1.0")
	v.SetDefault("download.max_size", 0)
	v.SetDefault("download.validate_audio", false)
	v.SetDefault("download.bandwidth_limit", 0)

	// Transcription defaults
	v.SetDefault("transcription.backend", BackendFasterWhisper)
	v.SetDefault("transcription.model", "large-v3")
	v.SetDefault("transcription.language", "")
	v.SetDefault("transcription.compute_type", "")
	v.SetDefault("transcription.device", "auto")
	v.SetDefault("transcription.prefer_published", false)
	v.SetDefault("transcription.fetch_timeout", 30*time.Second)
	v.SetDefault("transcription.python_path", "python3")
	v.SetDefault("transcription.whisper_path", "whisper-cli")
	v.SetDefault("transcription.model_dir", "./models")
	v.SetDefault("transcription.vad_model", "")
	v.SetDefault("transcription.threads", 4)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")
	v.SetDefault("ffmpeg.timeout", 10*time.Minute)

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.verbose", false)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
