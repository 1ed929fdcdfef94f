// Package progress draws single-line progress bars on a terminal:
//
//	0x008000 [==========>           ] 50%
package progress

import (
	"fmt"
	"io"
	"strings"

	"github.com/mojo-nes/mk3prog/programmer"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 80

// Escape sequences toggling cursor visibility.
const (
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
)

// Render returns a bar for pos out of total that fills width columns.
func Render(text string, pos, total, width int) string {
	pct := 100
	if total > 0 {
		pos = min(max(pos, 0), total)
		pct = pos * 100 / total
	}

	prefix := 1
	if text != "" {
		prefix = len(text) + 2
	}
	barLen := width - prefix - len("] 100%")
	if barLen < 1 {
		return fmt.Sprintf("%s %3d%%", text, pct)
	}

	filled := barLen
	if total > 0 {
		filled = barLen * pos / total
	}

	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteByte(' ')
	}
	b.WriteByte('[')
	switch {
	case filled >= barLen:
		b.WriteString(strings.Repeat("=", barLen))
	case filled > 0:
		b.WriteString(strings.Repeat("=", filled-1))
		b.WriteByte('>')
		b.WriteString(strings.Repeat(" ", barLen-filled))
	default:
		b.WriteString(strings.Repeat(" ", barLen))
	}
	fmt.Fprintf(&b, "] %3d%%", pct)
	return b.String()
}

// Bar redraws a progress line in place.
type Bar struct {
	w      io.Writer
	width  int
	active bool
}

// New returns a bar writing to w, width columns wide. A width of zero or
// less selects DefaultWidth.
func New(w io.Writer, width int) *Bar {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Bar{w: w, width: width}
}

// Draw redraws the line for pos out of total and hides the cursor.
func (b *Bar) Draw(text string, pos, total int) {
	if !b.active {
		io.WriteString(b.w, hideCursor)
		b.active = true
	}
	fmt.Fprintf(b.w, "\r%s", Render(text, pos, total, b.width))
}

// Done ends the current line and restores the cursor.
func (b *Bar) Done() {
	if !b.active {
		return
	}
	io.WriteString(b.w, "\n"+showCursor)
	b.active = false
}

// Callback adapts the bar to session progress reports. Transfers are
// labelled with the next address; the line ends when a transfer completes.
func (b *Bar) Callback() programmer.ProgressCallback {
	return func(p programmer.Progress) {
		switch p.Phase {
		case programmer.PhaseWriting, programmer.PhaseReading:
			b.Draw(fmt.Sprintf("0x%06X", p.Address), p.Done, p.Total)
			if p.Total > 0 && p.Done >= p.Total {
				b.Done()
			}
		}
	}
}
