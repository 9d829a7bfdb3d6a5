package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
)

// Format identifies a transcript serialization
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
	// FormatVTT is accepted by the parser only; results are never written as VTT.
	FormatVTT Format = "vtt"

	// FormatAll selects every output format
	FormatAll = "all"
)

// OutputFormats lists the formats Write can produce, in write order
var OutputFormats = []Format{FormatText, FormatSRT, FormatJSON}

// ParseFormats resolves a user-supplied format name into output formats.
// "all" expands to txt, srt and json.
func ParseFormats(name string) ([]Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == FormatAll {
		out := make([]Format, len(OutputFormats))
		copy(out, OutputFormats)
		return out, nil
	}
	for _, f := range OutputFormats {
		if string(f) == name {
			return []Format{f}, nil
		}
	}
	return nil, apperrors.ConfigError("output.format", fmt.Sprintf("unsupported output format %q (want txt, srt, json or all)", name))
}

// Render serializes the result in the given format
func (r *Result) Render(format Format) (string, error) {
	switch format {
	case FormatText:
		return r.AsText(), nil
	case FormatSRT:
		return r.AsSRT(), nil
	case FormatJSON:
		return r.AsJSON(), nil
	default:
		return "", apperrors.ConfigError("format", fmt.Sprintf("cannot render format %q", format))
	}
}

// Writer persists transcript results next to a base path
type Writer struct {
	// FileMode applied to created transcript files
	FileMode os.FileMode
}

// NewWriter creates a writer with default permissions
func NewWriter() *Writer {
	return &Writer{FileMode: 0o644}
}

// PathFor returns the output path for a format: basePath with the format extension
func PathFor(basePath string, format Format) string {
	return basePath + "." + string(format)
}

// Write serializes the result to every requested format and returns the written paths.
// Each document is rendered completely before anything touches the disk, then
// written to a temporary sibling and renamed into place.
func (w *Writer) Write(result *Result, basePath string, formats []Format) ([]string, error) {
	if len(formats) == 0 {
		return nil, apperrors.ConfigError("format", "no output formats requested")
	}
	if err := os.MkdirAll(filepath.Dir(basePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	written := make([]string, 0, len(formats))
	for _, format := range formats {
		content, err := result.Render(format)
		if err != nil {
			return written, err
		}
		path := PathFor(basePath, format)
		if err := writeFileAtomic(path, []byte(content), w.FileMode); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// writeFileAtomic writes data to path via a temporary sibling and rename
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
