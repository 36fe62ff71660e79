package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/courier/internal/logtail"
)

const logBufferLimit = 2000

// logState holds all log-related state.
type logState struct {
	entries  []logtail.Entry
	follow   bool
	events   <-chan struct{}
	watchErr error
	readErr  error
	rendered bool
}

type logWatchMsg struct {
	events <-chan struct{}
	err    error
}

type logChangedMsg struct{}

type logLinesMsg struct {
	entries []logtail.Entry
	err     error
}

// watchLogCmd starts an fsnotify watch on the engine log.
func watchLogCmd(ctx context.Context, path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		events, err := logtail.Watch(ctx, path)
		return logWatchMsg{events: events, err: err}
	}
}

// waitLogCmd blocks until the log changes. A closed channel ends the wait loop.
func waitLogCmd(events <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return nil
		}
		return logChangedMsg{}
	}
}

func readLogCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logBufferLimit)
		if err != nil {
			return logLinesMsg{err: err}
		}
		entries := make([]logtail.Entry, 0, len(lines))
		for _, line := range lines {
			entry, _ := logtail.Parse(line)
			entries = append(entries, entry)
		}
		return logLinesMsg{entries: entries}
	}
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logState.readErr = msg.err
	if msg.err == nil {
		m.logState.entries = msg.entries
	}
	m.logState.rendered = false
	m.updateLogViewport()
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
		}
	case key.Matches(msg, m.keys.Up):
		m.logState.follow = false
		m.logViewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logViewport.LineDown(1)
	case key.Matches(msg, m.keys.Top):
		m.logState.follow = false
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logState.follow = true
		m.logViewport.GotoBottom()
	}
	return m, nil
}

// updateLogViewport sizes the viewport and re-renders when content changed.
func (m *Model) updateLogViewport() {
	// header + command bar + box borders + status line
	width, height := m.width-4, m.height-5
	if width < 1 || height < 1 {
		return
	}
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, height)
	}
	m.logViewport.Width = width
	m.logViewport.Height = height

	if !m.logState.rendered {
		m.logViewport.SetContent(m.renderLogContent(width))
		m.logState.rendered = true
	}
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogContent(width int) string {
	styles := m.theme.Styles()
	if m.logState.readErr != nil {
		return styles.DangerText.Render("Cannot read log: " + m.logState.readErr.Error())
	}
	if len(m.logState.entries) == 0 {
		return styles.MutedText.Render("No log entries")
	}
	lines := make([]string, 0, len(m.logState.entries))
	for _, e := range m.logState.entries {
		line := truncate(logtail.Format(e), width)
		lines = append(lines, logLevelStyle(styles, e.Level).Render(line))
	}
	return strings.Join(lines, "\n")
}

func logLevelStyle(styles Styles, level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error", "dpanic", "panic", "fatal":
		return styles.DangerText
	case "warn":
		return styles.WarningText
	case "debug":
		return styles.FaintText
	case "info":
		return styles.Text
	default:
		return styles.MutedText
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Width(m.width - 2).
		Render(m.logViewport.View())

	autoTail := "off"
	if m.logState.follow {
		autoTail = "on"
	}
	status := fmt.Sprintf("Engine log %d lines  auto-tail %s  %s",
		len(m.logState.entries), autoTail, truncateMiddle(m.logPath, 48))
	if m.logState.watchErr != nil {
		status += "  (live updates off: " + m.logState.watchErr.Error() + ")"
	}
	return box + "\n" + styles.FaintText.Render(status)
}
