package cliui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/recinq/unitytool/internal/envelope"
)

// Palette mirrors the teacher's tui.WaveTheme color choices (cyan
// primary, muted gray, red for errors), extended with a severity scale.
var (
	colorInfo     = lipgloss.Color("6")   // cyan
	colorWarning  = lipgloss.Color("3")   // yellow
	colorError    = lipgloss.Color("1")   // red
	colorCritical = lipgloss.Color("5")   // magenta
	colorMuted    = lipgloss.Color("244") // gray
)

var severityStyles = map[envelope.Severity]lipgloss.Style{
	envelope.SeverityInfo:     lipgloss.NewStyle().Foreground(colorInfo),
	envelope.SeverityWarning:  lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
	envelope.SeverityError:    lipgloss.NewStyle().Foreground(colorError).Bold(true),
	envelope.SeverityCritical: lipgloss.NewStyle().Foreground(colorCritical).Bold(true),
}

// StyleSeverity renders sev as a styled badge when out is a TTY, else
// plain text.
func StyleSeverity(sev envelope.Severity, tty bool) string {
	label := fmt.Sprintf("[%s]", sev)
	if !tty {
		return label
	}
	style, ok := severityStyles[sev]
	if !ok {
		return label
	}
	return style.Render(label)
}

// RenderEnvelope formats an envelope for human-readable (non-JSON)
// output.
func RenderEnvelope(env envelope.Envelope, tty bool) string {
	header := fmt.Sprintf("%s %s: %s", StyleSeverity(env.Severity, tty), env.Code, env.Message)
	if len(env.Diagnostics) == 0 {
		return header
	}

	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)
	out := header + "\n"
	for _, d := range env.Diagnostics {
		line := fmt.Sprintf("  %s %s: %s", d.Code, d.Location, d.Detail)
		if tty {
			line = mutedStyle.Render(line)
		}
		out += line + "\n"
	}
	return out
}
