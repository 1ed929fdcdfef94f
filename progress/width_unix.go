//go:build unix

package progress

import "golang.org/x/sys/unix"

// TerminalWidth returns the column count of the terminal on fd, or
// DefaultWidth if fd is not a terminal.
func TerminalWidth(fd int) int {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return DefaultWidth
	}
	return int(ws.Col)
}
