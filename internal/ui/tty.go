package ui

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTTY checks if the given file descriptor is a terminal
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsTerminalWriter reports whether w is a file attached to a terminal
func IsTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && IsTTY(f.Fd())
}

// IsColorEnabled returns true if color output should be enabled for w
func IsColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminalWriter(w)
}
