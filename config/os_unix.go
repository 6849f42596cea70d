//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

const forbiddenNameChars = string(os.PathSeparator) + string(os.PathListSeparator)

// unix has no reserved names
var reservedNames []string

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
