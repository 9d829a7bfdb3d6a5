// Package paths derives on-disk locations for episode audio and transcripts.
package paths

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/killallgit/podcast-dl/internal/services/feeds"
)

// AppName names the per-user cache and output directories
const AppName = "podcast-dl"

// MaxFilenameRunes caps the length of a derived file name
const MaxFilenameRunes = 120

const defaultAudioExt = "mp3"

// SafeFilename replaces every character that is not a letter, digit, '_',
// '-', '.' or space with '_', caps the result at MaxFilenameRunes and trims
// surrounding spaces. Titles are NFC-normalized first so composed and
// decomposed spellings map to the same name.
func SafeFilename(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	count := 0
	for _, r := range name {
		if count == MaxFilenameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' || r == '.' || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
		count++
	}
	return strings.Trim(b.String(), " ")
}

// AudioExt returns the audio extension for a source URL: the text after the
// last '.' (query removed) when it is alphabetic and at most 4 characters,
// otherwise mp3
func AudioExt(sourceURL string) string {
	if idx := strings.Index(sourceURL, "?"); idx >= 0 {
		sourceURL = sourceURL[:idx]
	}
	ext := sourceURL
	if idx := strings.LastIndex(sourceURL, "."); idx >= 0 {
		ext = sourceURL[idx+1:]
	}
	if ext == "" || len([]rune(ext)) > 4 {
		return defaultAudioExt
	}
	for _, r := range ext {
		if !unicode.IsLetter(r) {
			return defaultAudioExt
		}
	}
	return ext
}

func baseName(title string) string {
	if safe := SafeFilename(title); safe != "" {
		return safe
	}
	return "episode"
}

// AudioPath returns where an episode's audio is stored inside dir
func AudioPath(dir string, ep feeds.Episode) string {
	return filepath.Join(dir, baseName(ep.Title)+"."+AudioExt(ep.AudioURL))
}

// TranscriptBase returns the extension-less transcript path inside dir
func TranscriptBase(dir string, ep feeds.Episode) string {
	return filepath.Join(dir, baseName(ep.Title))
}

// TranscriptBaseForFile returns the audio path without its extension
func TranscriptBaseForFile(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
}

// DefaultCacheDir returns the per-user cache directory
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultOutputDir returns the per-user download directory for audio and transcripts.
// XDG_DOWNLOAD_DIR overrides ~/Downloads.
func DefaultOutputDir() string {
	if dir := os.Getenv("XDG_DOWNLOAD_DIR"); dir != "" {
		return filepath.Join(ExpandHome(dir), AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads", AppName)
	}
	return AppName
}

// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// OrDefault returns dir with ~ expanded, or fallback when dir is empty
func OrDefault(dir, fallback string) string {
	if dir == "" {
		return fallback
	}
	return ExpandHome(dir)
}
