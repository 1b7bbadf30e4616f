// Package cliui provides terminal capability detection, severity
// styling, interactive confirm prompts, and a live scan progress bar,
// grounded on the teacher's internal/display and internal/tui packages.
package cliui

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// TerminalInfo reports what the current stdout can do.
type TerminalInfo struct {
	IsTTY bool
	Width int
}

// Detect inspects stdout, honoring UNITYTOOL_FORCE_TTY=1/0 for tests and
// scripted CI runs the way the teacher honors WAVE_FORCE_TTY.
func Detect() TerminalInfo {
	return TerminalInfo{
		IsTTY: isTerminal(),
		Width: terminalWidth(),
	}
}

func isTerminal() bool {
	if v := os.Getenv("UNITYTOOL_FORCE_TTY"); v != "" {
		return v == "1" || v == "true"
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if v := os.Getenv("COLUMNS"); v != "" {
		if w, err := strconv.Atoi(v); err == nil && w > 0 {
			return w
		}
	}
	return 80
}
