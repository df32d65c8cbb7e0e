package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fleetkeeper/core/internal/manager"
)

// Model is the bubbletea model for fleet-top: it polls a fleet-adapter's
// status endpoint on a tick and renders the fleet as a live table.
type Model struct {
	client  *Client
	apiURL  string
	refresh time.Duration

	connected  bool
	lastErr    error
	agents     []manager.AgentStatus
	themeIndex int

	width  int
	height int
	ready  bool

	table table.Model
}

type agentsMsg struct {
	agents []manager.AgentStatus
	err    error
}

type tickMsg time.Time

// NewModel builds a Model that polls client every refresh interval.
func NewModel(client *Client, apiURL string, refresh time.Duration) Model {
	return Model{
		client:  client,
		apiURL:  apiURL,
		refresh: refresh,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchAgents(m.client), tickCmd(m.refresh))
}

func fetchAgents(c *Client) tea.Cmd {
	return func() tea.Msg {
		agents, err := c.Agents()
		return agentsMsg{agents: agents, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
