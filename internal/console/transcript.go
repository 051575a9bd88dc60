package console

import (
	"bytes"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Transcript records every byte written to it.
type Transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Write(p)
}

// Bytes returns a copy of the raw output.
func (t *Transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.buf.Bytes())
}

// String returns the raw output.
func (t *Transcript) String() string {
	return string(t.Bytes())
}

// Plain returns the output with escape sequences removed.
func (t *Transcript) Plain() string {
	return ansi.Strip(t.String())
}

// Len returns the number of bytes recorded.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Len()
}
