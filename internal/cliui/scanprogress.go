package cliui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// ScanTick reports incremental progress of a long-running scan, emitted
// on a channel by the caller as files are processed.
type ScanTick struct {
	Done    int
	Total   int
	Current string // path of the file just processed, for the status line
}

type scanProgressModel struct {
	bar     progress.Model
	ticks   <-chan ScanTick
	done    int
	total   int
	current string
	closed  bool
}

type scanTickMsg ScanTick
type scanClosedMsg struct{}

func waitForTick(ticks <-chan ScanTick) tea.Cmd {
	return func() tea.Msg {
		tick, ok := <-ticks
		if !ok {
			return scanClosedMsg{}
		}
		return scanTickMsg(tick)
	}
}

func (m scanProgressModel) Init() tea.Cmd {
	return waitForTick(m.ticks)
}

func (m scanProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanTickMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.current = msg.Current
		return m, waitForTick(m.ticks)
	case scanClosedMsg:
		m.closed = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m scanProgressModel) View() string {
	if m.closed {
		return ""
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	return fmt.Sprintf("%s  %d/%d  %s\n", m.bar.ViewAs(pct), m.done, m.total, m.current)
}

// RunScanProgress drives a live bubbletea progress bar off ticks until
// the channel closes. It is a no-op (drains silently) when out is not a
// TTY, since an ANSI progress bar on a pipe just corrupts the log.
func RunScanProgress(ctx context.Context, ticks <-chan ScanTick, tty bool) error {
	if !tty {
		for range ticks {
		}
		return nil
	}

	bar := progress.New(progress.WithDefaultGradient())
	model := scanProgressModel{bar: bar, ticks: ticks}

	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		return fmt.Errorf("cliui: scan progress display: %w", err)
	}
	return nil
}
