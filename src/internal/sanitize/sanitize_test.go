package sanitize

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeStripsANSI(t *testing.T) {
	in := []byte("\x1b[1;31merror\x1b[0m: compile failed\n")
	got := Sanitize(in)
	want := "error: compile failed\n"
	if got != want {
		t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
	}
}

func TestSanitizeDeletesNonPrintable(t *testing.T) {
	in := []byte("ok\x00\x07\x7f\xc3\xa9 done\r\n")
	got := Sanitize(in)
	// Deletion, not substitution: the carriage return and the UTF-8
	// bytes disappear without leaving placeholders.
	want := "ok done\n"
	if got != want {
		t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
	}
}

func TestSanitizeIdempotentOnCleanInput(t *testing.T) {
	in := "plain text\twith tabs\nand lines ~!"
	if got := Sanitize([]byte(in)); got != in {
		t.Fatalf("clean input changed: %q -> %q", in, got)
	}
	if got := Sanitize([]byte(Sanitize([]byte(in)))); got != in {
		t.Fatalf("not idempotent: %q", got)
	}
}

func TestSanitizeOutputAlwaysPrintable(t *testing.T) {
	var in []byte
	for b := 0; b < 256; b++ {
		in = append(in, byte(b))
	}
	got := Sanitize(in)
	for _, c := range []byte(got) {
		if c != '\t' && c != '\n' && (c < ' ' || c > '~') {
			t.Fatalf("output contains non-printable byte %#x in %q", c, got)
		}
	}
}

func TestLineStreamerBuffersPartialLines(t *testing.T) {
	var sink bytes.Buffer
	s := NewLineStreamer(&sink)

	s.Write([]byte("first li"))
	if sink.Len() != 0 {
		t.Fatalf("partial line flushed early: %q", sink.String())
	}
	s.Write([]byte("ne\nsecond"))
	if got := sink.String(); got != "first line\n" {
		t.Fatalf("after newline: %q", got)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sink.String(); got != "first line\nsecond\n" {
		t.Fatalf("after flush: %q", got)
	}
}

func TestLineStreamerSanitizesPerEvent(t *testing.T) {
	var sink bytes.Buffer
	s := NewLineStreamer(&sink)
	s.Write([]byte("\x1b[32mPASS\x1b[0m one\n\x1b[31mFAIL"))
	s.Write([]byte("\x1b[0m two\n"))
	want := "PASS one\nFAIL two\n"
	if got := sink.String(); got != want {
		t.Fatalf("streamed %q, want %q", got, want)
	}
}

func TestLineStreamerFlushEmpty(t *testing.T) {
	var sink strings.Builder
	s := NewLineStreamer(&sink)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush on empty streamer: %v", err)
	}
	if sink.Len() != 0 {
		t.Fatalf("empty flush wrote %q", sink.String())
	}
}
