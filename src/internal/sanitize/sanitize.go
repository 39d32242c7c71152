// Package sanitize filters raw subprocess output down to printable text.
//
// nargo writes colored, cursor-controlled terminal output; log sinks want
// plain lines. The filter deletes (never substitutes) anything that is not
// printable ASCII, tab, or newline.
package sanitize

import (
	"io"
	"regexp"
	"strings"
	"sync"
)

var (
	// CSI and two-byte escape sequences. Partial sequences split across
	// two data events are not reassembled; the filter is stateless.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[@-_]`)

	nonPrintablePattern = regexp.MustCompile(`[^\t\n -~]`)
)

// Sanitize strips ANSI escape sequences and every byte outside
// [\t \n space..~] from the input. Clean input passes through unchanged.
func Sanitize(data []byte) string {
	out := ansiPattern.ReplaceAll(data, nil)
	out = nonPrintablePattern.ReplaceAll(out, nil)
	return string(out)
}

// LineStreamer forwards sanitized output to a sink one data event at a
// time. Complete lines are written as they arrive; a trailing unterminated
// line is buffered until the next event or Flush. Safe for concurrent
// Write calls from the stdout and stderr pump goroutines.
type LineStreamer struct {
	mu      sync.Mutex
	sink    io.Writer
	partial strings.Builder
}

func NewLineStreamer(sink io.Writer) *LineStreamer {
	return &LineStreamer{sink: sink}
}

// Write accepts one raw data event. It never returns a short write error
// to the subprocess pump; sink failures are reported but the stream
// position advances regardless.
func (s *LineStreamer) Write(data []byte) (int, error) {
	clean := Sanitize(data)
	if clean == "" {
		return len(data), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.WriteString(clean)
	buffered := s.partial.String()
	idx := strings.LastIndexByte(buffered, '\n')
	if idx < 0 {
		return len(data), nil
	}

	if _, err := io.WriteString(s.sink, buffered[:idx+1]); err != nil {
		return len(data), err
	}
	s.partial.Reset()
	s.partial.WriteString(buffered[idx+1:])
	return len(data), nil
}

// Flush writes any buffered trailing line, terminating it.
func (s *LineStreamer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.partial.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(s.sink, s.partial.String()+"\n")
	s.partial.Reset()
	return err
}
