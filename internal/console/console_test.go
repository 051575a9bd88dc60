package console

import (
	"strings"
	"testing"
	"time"
)

func TestScreenText(t *testing.T) {
	s := NewScreen(20, 5)
	defer s.Close()

	if _, err := s.Write([]byte("hello\r\nworld  \r\n")); err != nil {
		t.Fatal(err)
	}
	if got := s.Text(); got != "hello\nworld" {
		t.Errorf("Text() = %q", got)
	}
}

func TestScreenAppliesEscapes(t *testing.T) {
	s := NewScreen(20, 5)
	defer s.Close()

	// Erase the line and rewrite it, then colour a word.
	_, _ = s.Write([]byte("progress 10%\r\x1b[2Kdone\r\n\x1b[31mred\x1b[0m"))
	if got := s.Text(); got != "done\nred" {
		t.Errorf("Text() = %q", got)
	}
}

func TestScreenSwallowsQueries(t *testing.T) {
	s := NewScreen(0, 0)
	defer s.Close()

	if cols, rows := s.Size(); cols != DefaultCols || rows != DefaultRows {
		t.Errorf("size = %dx%d", cols, rows)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Write([]byte("\x1b[6n\x1b[c\x1b[>cok"))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write blocked on a terminal query")
	}
	if got := s.Text(); got != "ok" {
		t.Errorf("Text() = %q", got)
	}
}

func TestScreenCloseTwice(t *testing.T) {
	s := NewScreen(10, 2)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
}

func TestTranscript(t *testing.T) {
	var tr Transcript
	for _, b := range []byte("\x1b[1mbold\x1b[0m text\n") {
		if _, err := tr.Write([]byte{b}); err != nil {
			t.Fatal(err)
		}
	}

	if !strings.HasPrefix(tr.String(), "\x1b[1m") {
		t.Errorf("raw output lost escapes: %q", tr.String())
	}
	if got := tr.Plain(); got != "bold text\n" {
		t.Errorf("Plain() = %q", got)
	}
	if tr.Len() != len("\x1b[1mbold\x1b[0m text\n") {
		t.Errorf("Len() = %d", tr.Len())
	}
}
