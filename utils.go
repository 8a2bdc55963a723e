package visioncore

import (
	"os"

	"golang.org/x/term"
)

// GetTerminalSize returns the terminal dimensions (columns, lines).
// If terminal size cannot be detected, returns the provided defaults.
//
func GetTerminalSize(defaultCols, defaultLines int) (cols, lines int) {
	// Try to get terminal size from various file descriptors
	// Try stdin (fd 0)
	if width, height, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		return width, height
	}

	// Try stdout (fd 1)
	if width, height, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return width, height
	}

	// Try stderr (fd 2)
	if width, height, err := term.GetSize(int(os.Stderr.Fd())); err == nil {
		return width, height
	}

	// Fallback to defaults
	return defaultCols, defaultLines
}
