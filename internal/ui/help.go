package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const helpWidth = 56

// helpMarkdown renders the key map as a markdown document.
func helpMarkdown(k keyMap) string {
	var b strings.Builder
	b.WriteString("# Keyboard shortcuts\n\n")
	for i, group := range k.FullHelp() {
		title := "More"
		if i < len(helpGroupTitles) {
			title = helpGroupTitles[i]
		}
		fmt.Fprintf(&b, "## %s\n\n| Key | Action |\n|---|---|\n", title)
		for _, binding := range group {
			h := binding.Help()
			key := strings.ReplaceAll(h.Key, "|", "\\|")
			fmt.Fprintf(&b, "| `%s` | %s |\n", key, h.Desc)
		}
		b.WriteString("\n")
	}
	b.WriteString("Destructive actions ask for confirmation. Any key closes this help.\n")
	return b.String()
}

// renderHelpContent renders the help document with glamour, falling back to
// the raw markdown when rendering fails.
func renderHelpContent(k keyMap, width int) string {
	md := helpMarkdown(k)
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	content := m.helpContent
	if content == "" {
		content = renderHelpContent(m.keys, helpWidth)
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(0, 1)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
