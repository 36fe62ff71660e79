package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/courier/internal/instance"
)

// renderHeader renders the top status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	name := ""
	if m.controller != nil {
		name = m.controller.Instance()
	}
	parts := []string{bg.Render("courier", styles.Logo)}
	if name != "" {
		parts = append(parts, bg.Render(name, styles.Text.Bold(true)))
	}

	if !m.snapshot.HasState {
		parts = append(parts, bg.Render("Contacting gateway...", styles.WarningText.Bold(true)))
		return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
	}

	st := m.snapshot.Instance
	parts = append(parts, m.stateBadge(st))
	if st.Busy() {
		parts = append(parts, bg.Render(m.spinner.View()+" "+pendingLabel(st.Pending), styles.AccentText))
	}
	if st.IsOffline() {
		parts = append(parts, m.theme.Styles().StateStyle("offline").Render("GATEWAY OFFLINE"))
	}
	if !st.LastPolled.IsZero() {
		parts = append(parts, bg.Render("polled "+st.LastPolled.Local().Format("15:04:05"), styles.MutedText))
	}
	if m.gateway != "" && m.width >= 100 {
		parts = append(parts, bg.Render(truncateMiddle(m.gateway, 40), styles.FaintText))
	}
	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// stateBadge renders the connection state as a colored chip.
func (m Model) stateBadge(st instance.State) string {
	cs := st.Current.ConnectionState()
	return m.theme.Styles().StateStyle(cs.String()).Render(strings.ToUpper(stateLabel(cs)))
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"j/k", "Scroll"},
			{"G", "Bottom"},
			{"esc", "Dashboard"},
			{"?", "More"},
		}
	default:
		for _, a := range m.snapshot.Instance.Actions() {
			commands = append(commands, cmd{actionKey(a), actionLabel(a, m.snapshot.Instance)})
		}
		commands = append(commands,
			cmd{"r", "Refresh"},
			cmd{"l", "Log"},
			cmd{"?", "More"},
		)
	}

	colon := bg.Render(":", styles.FaintText)
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(bg.Join(segments, "  "))
}

func actionKey(a instance.Action) string {
	switch a {
	case instance.ActionConnect:
		return "c"
	case instance.ActionDisconnect:
		return "x"
	case instance.ActionDelete:
		return "d"
	case instance.ActionRegenerate:
		return "g"
	default:
		return "?"
	}
}

func actionLabel(a instance.Action, st instance.State) string {
	switch a {
	case instance.ActionConnect:
		if !st.Current.Found {
			return "Create"
		}
		return "Connect"
	case instance.ActionDisconnect:
		return "Disconnect"
	case instance.ActionDelete:
		return "Delete"
	case instance.ActionRegenerate:
		return "New QR"
	default:
		return a.String()
	}
}

func pendingLabel(c instance.Command) string {
	switch c {
	case instance.CommandConnect:
		return "connecting..."
	case instance.CommandDisconnect:
		return "disconnecting..."
	case instance.CommandDelete:
		return "deleting..."
	default:
		return ""
	}
}

func stateLabel(cs instance.ConnectionState) string {
	switch cs {
	case instance.StateNotFound:
		return "not found"
	case instance.StateClosed:
		return "disconnected"
	case instance.StateConnecting:
		return "connecting"
	case instance.StatePairing:
		return "waiting for scan"
	case instance.StateOpen:
		return "connected"
	default:
		return cs.String()
	}
}

// truncate truncates a string to max display width with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		if len(runes) > max {
			runes = runes[:max]
		}
		return string(runes)
	}
	if len(runes) > max-3 {
		runes = runes[:max-3]
	}
	return string(runes) + "..."
}

// truncateMiddle truncates a string in the middle, preserving start and end.
func truncateMiddle(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 5 {
		return string(runes[:max])
	}
	// Keep more of the end (file name) than the start
	endLen := (max - 3) * 2 / 3
	startLen := max - 3 - endLen
	return string(runes[:startLen]) + "..." + string(runes[len(runes)-endLen:])
}
