package visioncore

import "testing"

// TestGetTerminalSize_ReturnsSomeValue only checks that a size is always
// returned; under "go test" no fd is a real terminal, so this exercises
// the fallback-to-defaults path.
func TestGetTerminalSize_ReturnsSomeValue(t *testing.T) {
	cols, lines := GetTerminalSize(80, 24)
	if cols <= 0 || lines <= 0 {
		t.Errorf("expected positive terminal dimensions, got cols=%d lines=%d", cols, lines)
	}
}

func TestGetTerminalSize_FallsBackToDefaultsWhenNotATerminal(t *testing.T) {
	cols, lines := GetTerminalSize(123, 45)
	if cols != 123 || lines != 45 {
		t.Skip("test process has a real terminal attached to a standard fd; fallback path not exercised")
	}
}
