package transcript

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// VTT timestamp line (e.g., "00:00:01.000 --> 00:00:05.000"); hours are optional
	vttTimestampRegex = regexp.MustCompile(`((?:\d{1,2}:)?\d{2}:\d{2}\.\d{3})\s*-->\s*((?:\d{1,2}:)?\d{2}:\d{2}\.\d{3})`)
	// SRT timestamp line (e.g., "00:00:01,000 --> 00:00:05,000")
	srtTimestampRegex = regexp.MustCompile(`(\d{2,}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2,}:\d{2}:\d{2},\d{3})`)
	voiceTagRegex     = regexp.MustCompile(`<v[^>]*>`)
)

// Parser turns serialized transcripts back into results
type Parser struct{}

// NewParser creates a new transcript parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses transcript content based on its format.
// The returned result is frozen.
func (p *Parser) Parse(content string, format Format) (*Result, error) {
	var (
		result *Result
		err    error
	)
	switch format {
	case FormatVTT:
		result, err = p.parseCues(content, vttTimestampRegex, parseVTTTimestamp)
	case FormatSRT:
		result, err = p.parseCues(content, srtTimestampRegex, parseSRTTimestamp)
	case FormatJSON:
		result, err = p.parseJSON(content)
	case FormatText:
		result, err = p.parseText(content)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	result.Freeze()
	return result, nil
}

// parseCues parses cue-based formats (SRT and WebVTT): a timing line followed by text lines,
// with cues separated by blank lines
func (p *Parser) parseCues(content string, timing *regexp.Regexp, parseTS func(string) (float64, error)) (*Result, error) {
	result := NewResult("")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var current *Segment
	var text strings.Builder

	flush := func() {
		if current != nil && text.Len() > 0 {
			current.Text = strings.TrimSpace(text.String())
			_ = result.Append(*current)
		}
		current = nil
		text.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if line == "" {
			flush()
			continue
		}

		if matches := timing.FindStringSubmatch(line); matches != nil {
			flush()
			start, err := parseTS(matches[1])
			if err != nil {
				return nil, err
			}
			end, err := parseTS(matches[2])
			if err != nil {
				return nil, err
			}
			current = &Segment{Start: start, End: end}
			continue
		}

		if current == nil {
			// Headers (WEBVTT, NOTE), cue identifiers and SRT sequence numbers
			// all precede the timing line
			continue
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(removeVTTTags(line))
	}
	flush()

	return result, nil
}

// jsonInputSegment accepts this package's own output as well as common
// published-transcript spellings
type jsonInputSegment struct {
	Start     *float64 `json:"start"`
	StartTime *float64 `json:"startTime"`
	End       *float64 `json:"end"`
	EndTime   *float64 `json:"endTime"`
	Text      string   `json:"text"`
	Body      string   `json:"body"`
}

// parseJSON parses JSON transcripts: a bare segment array or an object with a segments array
func (p *Parser) parseJSON(content string) (*Result, error) {
	var segments []jsonInputSegment

	if err := json.Unmarshal([]byte(content), &segments); err != nil {
		var obj struct {
			Language string             `json:"language"`
			Segments []jsonInputSegment `json:"segments"`
		}
		if err := json.Unmarshal([]byte(content), &obj); err != nil {
			return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
		}
		result := NewResult(obj.Language)
		appendJSONSegments(result, obj.Segments)
		return result, nil
	}

	result := NewResult("")
	appendJSONSegments(result, segments)
	return result, nil
}

func appendJSONSegments(result *Result, segments []jsonInputSegment) {
	for _, seg := range segments {
		text := seg.Text
		if text == "" {
			text = seg.Body
		}
		_ = result.Append(Segment{
			Start: firstSet(seg.Start, seg.StartTime),
			End:   firstSet(seg.End, seg.EndTime),
			Text:  strings.TrimSpace(text),
		})
	}
}

func firstSet(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// parseText parses plain text transcripts; each non-empty line becomes an untimed segment
func (p *Parser) parseText(content string) (*Result, error) {
	result := NewResult("")
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			_ = result.Append(Segment{Text: line})
		}
	}
	return result, nil
}

// parseVTTTimestamp parses a VTT timestamp (HH:MM:SS.mmm or MM:SS.mmm) into seconds
func parseVTTTimestamp(timestamp string) (float64, error) {
	parts := strings.Split(timestamp, ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp: %s", timestamp)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp hours: %s", timestamp)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp minutes: %s", timestamp)
	}

	secParts := strings.SplitN(parts[2], ".", 2)
	seconds, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp seconds: %s", timestamp)
	}
	milliseconds := 0
	if len(secParts) > 1 {
		if milliseconds, err = strconv.Atoi(secParts[1]); err != nil {
			return 0, fmt.Errorf("invalid timestamp milliseconds: %s", timestamp)
		}
	}

	totalMs := int64(hours)*3_600_000 + int64(minutes)*60_000 + int64(seconds)*1000 + int64(milliseconds)
	return float64(totalMs) / 1000, nil
}

// parseSRTTimestamp parses an SRT timestamp (HH:MM:SS,mmm)
func parseSRTTimestamp(timestamp string) (float64, error) {
	return parseVTTTimestamp(strings.Replace(timestamp, ",", ".", 1))
}

// ParseTimestamp parses an HH:MM:SS.mmm or HH:MM:SS,mmm timestamp into seconds
func ParseTimestamp(timestamp string) (float64, error) {
	return parseSRTTimestamp(strings.TrimSpace(timestamp))
}

// removeVTTTags removes VTT-specific tags from text
func removeVTTTags(text string) string {
	text = voiceTagRegex.ReplaceAllString(text, "")

	for _, tag := range []string{"</v>", "<i>", "</i>", "<b>", "</b>", "<u>", "</u>"} {
		text = strings.ReplaceAll(text, tag, "")
	}

	return strings.TrimSpace(text)
}
