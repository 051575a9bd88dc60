// Package console captures UART output, either as a raw transcript or rendered
// through a VT emulator.
package console

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/vt"
)

// Default screen size
const (
	DefaultCols = 80
	DefaultRows = 40
)

// Screen renders a character stream the way a terminal would show it.
type Screen struct {
	emu *vt.SafeEmulator

	closeOnce sync.Once
	drained   chan struct{}
}

// NewScreen creates a screen of the given size. Non-positive sizes fall back
// to the defaults.
func NewScreen(cols, rows int) *Screen {
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}

	emu := vt.NewSafeEmulator(cols, rows)
	swallowQueries(emu)

	s := &Screen{emu: emu, drained: make(chan struct{})}
	go s.drainReplies()
	return s
}

// swallowQueries stops the emulator from answering status and attribute
// queries. The guest has no input channel, so replies would only pile up.
func swallowQueries(emu *vt.SafeEmulator) {
	// DSR: CSI 5 n, CSI 6 n
	emu.RegisterCsiHandler('n', func(params ansi.Params) bool {
		n, _, ok := params.Param(0, 1)
		return ok && (n == 5 || n == 6)
	})
	// DEC private DSR: CSI ? 6 n
	emu.RegisterCsiHandler(ansi.Command('?', 0, 'n'), func(params ansi.Params) bool {
		n, _, ok := params.Param(0, 1)
		return ok && n == 6
	})
	// DA: CSI c, CSI > c
	emu.RegisterCsiHandler('c', func(params ansi.Params) bool {
		n, _, _ := params.Param(0, 0)
		return n == 0
	})
	emu.RegisterCsiHandler(ansi.Command('>', 0, 'c'), func(params ansi.Params) bool {
		n, _, _ := params.Param(0, 0)
		return n == 0
	})
}

// drainReplies discards anything else the emulator writes back so that Write
// never blocks on an unread reply.
func (s *Screen) drainReplies() {
	defer close(s.drained)
	_, _ = io.Copy(io.Discard, s.emu)
}

// Write implements io.Writer.
func (s *Screen) Write(p []byte) (int, error) {
	return s.emu.Write(p)
}

// Size returns the screen size in cells.
func (s *Screen) Size() (cols, rows int) {
	return s.emu.Width(), s.emu.Height()
}

// Text returns the visible contents, one line per row, with trailing blanks
// and trailing empty rows removed.
func (s *Screen) Text() string {
	cols, rows := s.Size()

	lines := make([]string, 0, rows)
	var line strings.Builder
	for y := 0; y < rows; y++ {
		line.Reset()
		for x := 0; x < cols; {
			cell := s.emu.CellAt(x, y)
			w := 1
			content := " "
			if cell != nil {
				if cell.Content != "" {
					content = cell.Content
				}
				if cell.Width > 1 {
					w = cell.Width
				}
			}
			line.WriteString(content)
			x += w
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Close releases the emulator.
func (s *Screen) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.emu.Close()
		<-s.drained
	})
	return err
}

var _ io.WriteCloser = (*Screen)(nil)
