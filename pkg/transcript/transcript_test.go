package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResult(t *testing.T, segments ...Segment) *Result {
	t.Helper()
	result := NewResult("en")
	for _, seg := range segments {
		require.NoError(t, result.Append(seg))
	}
	result.Freeze()
	return result
}

func TestResult_EmptySerializers(t *testing.T) {
	result := newTestResult(t)

	assert.Equal(t, "", result.AsText())
	assert.Equal(t, "", result.AsSRT())
	assert.Equal(t, "[]", result.AsJSON())
	assert.Equal(t, 0.0, result.Duration())
}

func TestResult_AppendAfterFreeze(t *testing.T) {
	result := NewResult("en")
	require.NoError(t, result.Append(Segment{Start: 0, End: 1, Text: "one"}))
	result.Freeze()

	assert.True(t, result.Frozen())
	assert.Error(t, result.Append(Segment{Start: 1, End: 2, Text: "two"}))
	assert.Equal(t, 1, result.Len())
}

func TestResult_SegmentsIsACopy(t *testing.T) {
	result := newTestResult(t, Segment{Start: 0, End: 1, Text: "one"})

	segs := result.Segments()
	segs[0].Text = "changed"

	assert.Equal(t, "one", result.Segments()[0].Text)
}

func TestResult_KeepsArrivalOrder(t *testing.T) {
	result := newTestResult(t,
		Segment{Start: 5, End: 6, Text: "later"},
		Segment{Start: 1, End: 2, Text: "earlier"},
	)

	assert.Equal(t, "later\nearlier", result.AsText())
}

func TestAsText_SkipsBlankSegments(t *testing.T) {
	result := newTestResult(t,
		Segment{Start: 0, End: 1, Text: "  first  "},
		Segment{Start: 1, End: 2, Text: "   "},
		Segment{Start: 2, End: 3, Text: "\tsecond\n"},
	)

	assert.Equal(t, "first\nsecond", result.AsText())
}

func TestAsSRT_Example(t *testing.T) {
	result := newTestResult(t, Segment{Start: 3661.25, End: 3665.0, Text: " hello "})

	assert.Equal(t, "1\n01:01:01,250 --> 01:01:05,000\nhello\n", result.AsSRT())
}

func TestAsSRT_ContiguousSequenceNumbers(t *testing.T) {
	result := newTestResult(t,
		Segment{Start: 0, End: 1.5, Text: "a"},
		Segment{Start: 120, End: 121, Text: "b"},
		Segment{Start: 7200.5, End: 7300, Text: "c"},
		Segment{Start: 7300, End: 7300, Text: ""},
	)

	srt := result.AsSRT()
	blocks := strings.Split(strings.TrimSuffix(srt, "\n"), "\n\n")
	require.Len(t, blocks, 4)
	for i, block := range blocks {
		lines := strings.Split(block, "\n")
		assert.Equal(t, fmt.Sprint(i+1), lines[0])
		assert.Contains(t, lines[1], " --> ")
	}

	expected := "1\n00:00:00,000 --> 00:00:01,500\na\n" +
		"\n2\n00:02:00,000 --> 00:02:01,000\nb\n" +
		"\n3\n02:00:00,500 --> 02:01:40,000\nc\n" +
		"\n4\n02:01:40,000 --> 02:01:40,000\n\n"
	assert.Equal(t, expected, srt)
}

func TestFormatSRTTimestamp(t *testing.T) {
	tests := []struct {
		secs float64
		want string
	}{
		{0, "00:00:00,000"},
		{0.9999, "00:00:00,999"},
		{1.001, "00:00:01,001"},
		{59.5, "00:00:59,500"},
		{3599.999, "00:59:59,999"},
		{3661.25, "01:01:01,250"},
		{36000, "10:00:00,000"},
		{-2, "00:00:00,000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSRTTimestamp(tt.secs))
		})
	}
}

func TestAsJSON_ShapeAndRounding(t *testing.T) {
	result := newTestResult(t,
		Segment{Start: 0.12349, End: 2.0006, Text: "  你好，世界  "},
		Segment{Start: 2.5, End: 4, Text: "rock & roll <live>"},
	)

	out := result.AsJSON()

	assert.Contains(t, out, `"text": "你好，世界"`)
	assert.Contains(t, out, `"text": "rock & roll <live>"`)
	assert.Contains(t, out, "\n  {\n    \"start\": 0.123,")
	assert.NotContains(t, out, `\u`)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 0.123, decoded[0]["start"])
	assert.Equal(t, 2.001, decoded[0]["end"])
}

func TestAsJSON_RoundTrip(t *testing.T) {
	original := []Segment{
		{Start: 0, End: 3.14159, Text: " first "},
		{Start: 3.14159, End: 10.0004, Text: "second"},
		{Start: 10.0004, End: 3600.9999, Text: "ünïcødé tëxt"},
	}
	result := newTestResult(t, original...)

	parsed, err := NewParser().Parse(result.AsJSON(), FormatJSON)
	require.NoError(t, err)

	got := parsed.Segments()
	require.Len(t, got, len(original))
	for i := range original {
		assert.InDelta(t, original[i].Start, got[i].Start, 0.001)
		assert.InDelta(t, original[i].End, got[i].End, 0.001)
		assert.Equal(t, strings.TrimSpace(original[i].Text), got[i].Text)
	}
}

func TestSerializers_Idempotent(t *testing.T) {
	result := newTestResult(t,
		Segment{Start: 0, End: 1, Text: " one "},
		Segment{Start: 1, End: 2.5, Text: "two"},
	)

	for _, format := range OutputFormats {
		first, err := result.Render(format)
		require.NoError(t, err)
		second, err := result.Render(format)
		require.NoError(t, err)
		assert.Equal(t, first, second, "format %s", format)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0m 59s", FormatClock(59.9))
	assert.Equal(t, "2m 03s", FormatClock(123))
	assert.Equal(t, "1h 01m 01s", FormatClock(3661))
}
