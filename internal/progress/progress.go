// Package progress renders transfer and decoding progress. Bars are drawn
// only on an interactive terminal; otherwise progress goes to the debug log.
package progress

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// Unit selects how a bar renders its counters
type Unit int

const (
	// Bytes counts transferred bytes
	Bytes Unit = iota
	// Milliseconds counts decoded audio time
	Milliseconds
)

// DefaultLogInterval spaces progress log lines on non-interactive outputs
const DefaultLogInterval = 5 * time.Second

// Renderer creates progress bars on one output
type Renderer struct {
	out         io.Writer
	interactive bool
	logInterval time.Duration
}

// New returns a renderer writing to out. Bars are enabled when out is a terminal.
func New(out io.Writer) *Renderer {
	return &Renderer{out: out, interactive: IsTerminal(out), logInterval: DefaultLogInterval}
}

// NewPlain returns a renderer that only logs
func NewPlain() *Renderer {
	return &Renderer{out: io.Discard, logInterval: DefaultLogInterval}
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Interactive reports whether bars are drawn
func (r *Renderer) Interactive() bool {
	return r.interactive
}

// Bar tracks one task
type Bar struct {
	renderer *Renderer
	label    string
	unit     Unit

	bar      *progressbar.ProgressBar
	total    int64
	current  int64
	lastLog  time.Time
	finished bool
}

// NewBar starts tracking a task. Nothing is drawn until the first update.
func (r *Renderer) NewBar(label string, unit Unit) *Bar {
	return &Bar{renderer: r, label: label, unit: unit}
}

// Update moves the bar to current. total is negative when unknown.
func (b *Bar) Update(current, total int64) {
	if b.finished {
		return
	}
	b.current = current
	if total != b.total {
		b.total = total
		if b.bar != nil && total > 0 {
			b.bar.ChangeMax64(total)
		}
	}

	if !b.renderer.interactive {
		b.log(false)
		return
	}
	if b.bar == nil {
		b.bar = b.newProgressBar()
	}
	if b.unit == Milliseconds {
		b.bar.Describe(b.describeTime())
	}
	_ = b.bar.Set64(current)
}

// Finish completes the bar
func (b *Bar) Finish() {
	if b.finished {
		return
	}
	b.finished = true
	if b.bar != nil {
		_ = b.bar.Finish()
		_, _ = io.WriteString(b.renderer.out, "\n")
		return
	}
	if !b.renderer.interactive && b.current > 0 {
		b.log(true)
	}
}

func (b *Bar) newProgressBar() *progressbar.ProgressBar {
	limit := b.total
	if limit <= 0 {
		limit = -1
	}
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(b.renderer.out),
		progressbar.OptionSetDescription(b.label),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	}
	if b.unit == Bytes {
		opts = append(opts, progressbar.OptionShowBytes(true), progressbar.OptionShowCount())
	}
	return progressbar.NewOptions64(limit, opts...)
}

func (b *Bar) describeTime() string {
	position := transcript.FormatClock(float64(b.current) / 1000)
	if b.total <= 0 {
		return b.label + " " + position
	}
	return b.label + " " + position + "/" + transcript.FormatClock(float64(b.total)/1000)
}

func (b *Bar) log(final bool) {
	now := time.Now()
	if !final && !b.lastLog.IsZero() && now.Sub(b.lastLog) < b.renderer.logInterval {
		return
	}
	b.lastLog = now

	attrs := []any{"task", b.label}
	switch b.unit {
	case Bytes:
		attrs = append(attrs, "transferred", humanize.IBytes(uint64(max(b.current, 0))))
		if b.total > 0 {
			attrs = append(attrs, "total", humanize.IBytes(uint64(b.total)))
		}
	case Milliseconds:
		attrs = append(attrs, "position", transcript.FormatClock(float64(b.current)/1000))
		if b.total > 0 {
			attrs = append(attrs, "duration", transcript.FormatClock(float64(b.total)/1000))
		}
	}
	if b.total > 0 {
		attrs = append(attrs, "percent", humanize.FtoaWithDigits(100*float64(b.current)/float64(b.total), 1))
	}
	slog.Debug("Progress", attrs...)
}
