//go:build !unix

package progress

// TerminalWidth returns DefaultWidth.
func TerminalWidth(fd int) int {
	return DefaultWidth
}
