package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Segment represents one timed span of recognized speech.
// Start and End are seconds from the beginning of the audio.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is the ordered output of a transcription run for one audio file
type Result struct {
	Language string

	segments []Segment
	frozen   bool
}

// NewResult creates an empty result for the given language tag
func NewResult(language string) *Result {
	return &Result{
		Language: language,
		segments: []Segment{},
	}
}

// Append adds a segment to the end of the result.
// Segments are kept in arrival order; the result never re-sorts them.
func (r *Result) Append(seg Segment) error {
	if r.frozen {
		return fmt.Errorf("transcript result is frozen")
	}
	r.segments = append(r.segments, seg)
	return nil
}

// Freeze marks the result as complete. Further appends fail.
func (r *Result) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze has been called
func (r *Result) Frozen() bool {
	return r.frozen
}

// Len returns the number of segments
func (r *Result) Len() int {
	return len(r.segments)
}

// Segments returns a copy of the segment sequence
func (r *Result) Segments() []Segment {
	out := make([]Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Duration returns the end time of the last segment
func (r *Result) Duration() float64 {
	if len(r.segments) == 0 {
		return 0
	}
	return r.segments[len(r.segments)-1].End
}

// AsText returns every non-empty trimmed segment text, one per line
func (r *Result) AsText() string {
	lines := make([]string, 0, len(r.segments))
	for _, seg := range r.segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// AsSRT returns the result as a SubRip subtitle document
func (r *Result) AsSRT() string {
	var b strings.Builder
	for i, seg := range r.segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			i+1, FormatSRTTimestamp(seg.Start), FormatSRTTimestamp(seg.End), strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// jsonSegment is the on-disk shape of a segment in JSON output
type jsonSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// AsJSON returns the segments as an indented JSON array.
// Non-ASCII text is written verbatim and HTML characters are not escaped.
func (r *Result) AsJSON() string {
	data := make([]jsonSegment, 0, len(r.segments))
	for _, seg := range r.segments {
		data = append(data, jsonSegment{
			Start: round3(seg.Start),
			End:   round3(seg.End),
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// round3 maps NaN and Inf to 0, so only encodable values reach Encode.
	_ = enc.Encode(data)
	return strings.TrimSuffix(buf.String(), "\n")
}

// FormatSRTTimestamp formats seconds as HH:MM:SS,mmm.
// Milliseconds are truncated, not rounded.
func FormatSRTTimestamp(secs float64) string {
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		secs = 0
	}
	// The small guard keeps values like 1.001 (stored as 1.000999...) from
	// losing a whole millisecond to binary representation.
	totalMs := int64(math.Floor(secs*1000 + 1e-6))
	h := totalMs / 3_600_000
	m := (totalMs % 3_600_000) / 60_000
	s := (totalMs % 60_000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatClock formats a duration in seconds as "1h 02m 03s" or "2m 03s"
func FormatClock(secs float64) string {
	total := int64(secs)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}
