package logger

import (
	"io"
	"os"

	"golang.org/x/term"
)

// supportsColor reports whether w is a terminal that can render ANSI colors.
// NO_COLOR (https://no-color.org) disables colors regardless of the terminal.
func supportsColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
