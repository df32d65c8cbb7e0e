package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fleetkeeper/core/internal/resources"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.rebuildTable()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, fetchAgents(m.client)
		case key.Matches(msg, keys.Theme):
			m.themeIndex = (m.themeIndex + 1) % len(Themes)
			m.rebuildTable()
		}

	case agentsMsg:
		if msg.err != nil {
			m.connected = false
			m.lastErr = msg.err
		} else {
			m.connected = true
			m.lastErr = nil
			m.agents = msg.agents
			m.rebuildTable()
		}

	case tickMsg:
		cmds = append(cmds, fetchAgents(m.client), tickCmd(m.refresh))
	}

	if m.ready {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) rebuildTable() {
	columns := []table.Column{
		{Title: "Name", Width: 20},
		{Title: "State", Width: 12},
		{Title: "PID", Width: 8},
		{Title: "Health", Width: 8},
		{Title: "Restarts", Width: 10},
		{Title: "Uptime", Width: 12},
		{Title: "CPU %", Width: 8},
		{Title: "RSS", Width: 12},
	}

	sorted := make([]nameIndexedStatus, len(m.agents))
	for i, a := range m.agents {
		sorted[i] = nameIndexedStatus{name: a.Name, index: i}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	var rows []table.Row
	for _, s := range sorted {
		a := m.agents[s.index]
		rows = append(rows, table.Row{
			a.Name,
			string(a.State),
			fmt.Sprintf("%d", a.PID),
			fmt.Sprintf("%.0f", a.HealthScore),
			fmt.Sprintf("%d", a.RestartCount),
			a.Uptime.Truncate(1e9).String(),
			formatSampleCPU(a.LatestSample, a.HasSample),
			formatSampleRSS(a.LatestSample, a.HasSample),
		})
	}

	h := m.height - 4
	if h < 5 {
		h = 5
	}
	m.table = table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(h),
	)

	t := Themes[m.themeIndex]
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(t.Primary).Bold(true)
	styles.Selected = styles.Selected.Foreground(t.Background).Background(t.Primary)
	m.table.SetStyles(styles)
}

type nameIndexedStatus struct {
	name  string
	index int
}

func formatSampleCPU(s resources.Sample, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", s.CPUPercent)
}

func formatSampleRSS(s resources.Sample, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1fMB", float64(s.RSSBytes)/(1024*1024))
}
