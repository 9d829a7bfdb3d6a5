package recognition

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"

	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

var lookPath = exec.LookPath

const maxLineBytes = 1 << 20

// lineDecoder turns one line of backend output into a segment. ok is false
// for lines that carry no segment.
type lineDecoder func(line string) (seg transcript.Segment, ok bool, err error)

// processStream reads segments from a running backend process
type processStream struct {
	audioPath string
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	scanner   *bufio.Scanner
	stderr    *tailBuffer
	decode    lineDecoder
	// onExit converts a failed Wait into a domain error
	onExit  func(waitErr error, stderr string) error
	cleanup func()

	current transcript.Segment
	err     error
	done    bool
}

func newScanner(cmd *exec.Cmd) (*bufio.Scanner, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner, nil
}

func (s *processStream) Next() bool {
	if s.done {
		return false
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		seg, ok, err := s.decode(line)
		if err != nil {
			s.abort(err)
			return false
		}
		if ok {
			s.current = seg
			return true
		}
	}
	s.finish(s.scanner.Err())
	return false
}

func (s *processStream) Segment() transcript.Segment {
	return s.current
}

func (s *processStream) Err() error {
	return s.err
}

func (s *processStream) Close() error {
	if !s.done {
		s.abort(nil)
	}
	return nil
}

// finish reaps the process once stdout is exhausted. A scan error leaves the
// process writing into a pipe nobody reads, so it is killed before Wait.
func (s *processStream) finish(scanErr error) {
	if scanErr != nil {
		s.abort(apperrors.DecodeFailed(s.audioPath, scanErr))
		return
	}
	s.done = true
	waitErr := s.cmd.Wait()
	s.cancel()
	if waitErr != nil {
		s.err = s.onExit(waitErr, s.stderr.String())
	}
	s.release()
}

func (s *processStream) abort(err error) {
	s.done = true
	s.cancel()
	_ = s.cmd.Wait()
	s.err = err
	s.release()
}

func (s *processStream) release() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.data = append(t.data, p...)
	if over := len(t.data) - t.limit; over > 0 {
		t.data = t.data[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.data))
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
