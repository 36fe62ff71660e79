package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/courier/internal/evolution"
	"github.com/five82/courier/internal/instance"
)

const labelWidth = 14

// renderDashboard renders the status card, pairing panel, notices and activity.
func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	if !m.snapshot.HasState {
		return "\n" + styles.MutedText.Render("  Waiting for the first poll...")
	}

	cardWidth := m.width - 4
	if cardWidth > 72 {
		cardWidth = 72
	}
	if cardWidth < 20 {
		cardWidth = 20
	}

	sections := []string{m.renderStatusCard(cardWidth)}
	if m.snapshot.Instance.Current.ConnectionState() == instance.StatePairing {
		sections = append(sections, m.renderPairing(cardWidth))
	}
	if line := m.renderNoticeLine(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderActivity(cardWidth))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatusCard renders the instance profile and poll health.
func (m Model) renderStatusCard(width int) string {
	styles := m.theme.Styles()
	st := m.snapshot.Instance
	cur := st.Current
	var b strings.Builder

	b.WriteString(field(styles, "State", m.stateBadge(st)))
	if !cur.Found {
		b.WriteString(field(styles, "Instance", styles.MutedText.Render("not registered on the gateway, press c to create it")))
	}
	if cur.RawState != "" && cur.RawState != cur.ConnectionState().String() {
		b.WriteString(field(styles, "Gateway state", styles.FaintText.Render(cur.RawState)))
	}
	if cur.Owner != "" {
		b.WriteString(field(styles, "Owner", styles.Text.Render(formatOwner(cur.Owner))))
	}
	if cur.DisplayName != "" {
		b.WriteString(field(styles, "Profile", styles.Text.Render(cur.DisplayName)))
	}
	if counts := formatCounts(cur.MessageCount, cur.ContactCount, cur.ChatCount); counts != "" {
		b.WriteString(field(styles, "Activity", styles.Text.Render(counts)))
	}

	polled := "never"
	if !st.LastPolled.IsZero() {
		polled = st.LastPolled.Local().Format("15:04:05") + " (" + humanizeSince(st.LastPolled, time.Now()) + ")"
	}
	b.WriteString(field(styles, "Last poll", styles.MutedText.Render(polled)))
	if st.LastPollError != nil {
		msg := describePollError(st.LastPollError)
		if st.ConsecutiveFailures > 1 {
			msg = fmt.Sprintf("%s (%d in a row)", msg, st.ConsecutiveFailures)
		}
		b.WriteString(field(styles, "Poll error", styles.DangerText.Render(truncate(msg, width-labelWidth-4))))
	}

	return styles.Card.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

// renderNoticeLine shows the newest notice, or the last command result.
func (m Model) renderNoticeLine() string {
	styles := m.theme.Styles()
	if m.flash != "" {
		style := styles.AccentText
		if m.flashErr {
			style = styles.WarningText
		}
		return " " + style.Render(m.flash)
	}
	if !m.snapshot.HasNotice {
		return ""
	}
	n := m.snapshot.Notice
	text := n.Title
	if n.Detail != "" {
		text += ": " + n.Detail
	}
	return " " + styles.LevelStyle(n.Level).Render(truncate(text, m.width-20)) +
		styles.FaintText.Render("  (n to dismiss)")
}

// renderActivity lists recent journal entries, newest first.
func (m Model) renderActivity(width int) string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Recent activity"))
	b.WriteString("\n")

	switch {
	case m.activity == nil:
		b.WriteString(styles.FaintText.Render("Activity journal disabled"))
	case m.activityErr != nil && len(m.recent) == 0:
		b.WriteString(styles.DangerText.Render("Cannot read activity: " + m.activityErr.Error()))
	case len(m.recent) == 0:
		b.WriteString(styles.FaintText.Render("Nothing yet"))
	default:
		for i, n := range m.recent {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(formatActivity(styles, n, width-2))
		}
	}
	return lipgloss.NewStyle().Padding(1, 1, 0, 1).Render(b.String())
}

func formatActivity(styles Styles, n instance.Notice, width int) string {
	stamp := n.At.Local().Format("15:04:05")
	level := fmt.Sprintf("%-7s", n.Level.String())
	text := n.Title
	if n.Detail != "" {
		text += "  " + n.Detail
	}
	room := width - len(stamp) - len(level) - 2
	return styles.FaintText.Render(stamp) + " " +
		styles.LevelStyle(n.Level).Render(level) + " " +
		styles.Text.Render(truncate(text, room))
}

func field(styles Styles, label, value string) string {
	return styles.MutedText.Width(labelWidth).Render(label) + value + "\n"
}

// formatOwner strips the WhatsApp JID server suffix.
func formatOwner(jid string) string {
	if user, _, ok := strings.Cut(jid, "@"); ok && user != "" {
		return "+" + user
	}
	return jid
}

func formatCounts(messages, contacts, chats *int) string {
	var parts []string
	add := func(n *int, label string) {
		if n != nil {
			parts = append(parts, fmt.Sprintf("%d %s", *n, label))
		}
	}
	add(messages, "messages")
	add(contacts, "contacts")
	add(chats, "chats")
	return strings.Join(parts, "  ")
}

// describePollError returns a short operator-facing reason.
func describePollError(err error) string {
	var rej *evolution.RejectionError
	switch {
	case errors.As(err, &rej):
		if rej.Status == 401 || rej.Status == 403 {
			return fmt.Sprintf("gateway refused the API key (HTTP %d)", rej.Status)
		}
		return fmt.Sprintf("gateway returned HTTP %d", rej.Status)
	case errors.Is(err, evolution.ErrMalformed):
		return "gateway sent an unexpected response"
	case errors.Is(err, evolution.ErrTransient):
		return "gateway unreachable"
	default:
		return err.Error()
	}
}

// humanizeSince formats the time elapsed since t.
func humanizeSince(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
