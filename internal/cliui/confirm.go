package cliui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Theme mirrors the teacher's tui.WaveTheme: a huh.Theme using the same
// cyan/muted/red palette, adapted to this package's confirm-only use.
func Theme() *huh.Theme {
	t := huh.ThemeBase()

	cyan := lipgloss.Color("6")
	white := lipgloss.Color("7")
	muted := lipgloss.Color("244")
	red := lipgloss.Color("1")

	t.Focused.Base = t.Focused.Base.BorderForeground(cyan)
	t.Focused.Title = t.Focused.Title.Foreground(cyan).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(muted)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(red)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(red)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Foreground(lipgloss.Color("0")).Background(cyan)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(white).Background(lipgloss.Color("237"))
	t.Blurred = t.Focused
	t.Blurred.Base = t.Focused.Base.BorderStyle(lipgloss.HiddenBorder())

	return t
}

// Confirm prompts the operator to confirm a gated action (the apply-gate
// of §4.5 step 6). When stdout is not a TTY, Confirm refuses rather than
// guessing, so scripted invocations must pass --confirm explicitly.
func Confirm(prompt string, tty bool) (bool, error) {
	if !tty {
		return false, fmt.Errorf("cliui: cannot prompt for confirmation on a non-interactive terminal; pass --confirm explicitly")
	}

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Apply").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(Theme())

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, fmt.Errorf("cliui: confirm prompt failed: %w", err)
	}
	return confirmed, nil
}
