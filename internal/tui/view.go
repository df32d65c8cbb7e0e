package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "\n  connecting to fleet-adapter...\n"
	}

	t := Themes[m.themeIndex]
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewStatusBar(t),
		m.table.View(),
		m.viewFooter(t),
	)
}

func (m Model) viewStatusBar(t Theme) string {
	bar := lipgloss.NewStyle().
		Width(m.width).
		Background(t.Surface).
		Foreground(t.Text).
		Padding(0, 1)

	dot := lipgloss.NewStyle().Foreground(t.Success).Render("●")
	status := "CONNECTED"
	if !m.connected {
		dot = lipgloss.NewStyle().Foreground(t.Error).Render("●")
		status = "DISCONNECTED"
	}

	detail := fmt.Sprintf("%d agents", len(m.agents))
	if !m.connected && m.lastErr != nil {
		detail = m.lastErr.Error()
	}

	return bar.Render(fmt.Sprintf(" %s FLEET-TOP  │  %s  │  %s  │  %s",
		dot, status, detail, m.apiURL))
}

func (m Model) viewFooter(t Theme) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Background(t.Surface).
		Foreground(t.Text).
		Padding(0, 1).
		Render("q: quit  r: refresh  c: theme  ↑↓: navigate")
}
