package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a small named palette, the same shape the dashboard prototype
// used so switching themes is just swapping which Theme is active.
type Theme struct {
	Name       string
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Surface    lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Warning    lipgloss.Color
	Text       lipgloss.Color
}

var Themes = []Theme{
	{
		Name:       "Control Room",
		Primary:    lipgloss.Color("#00d4ff"),
		Secondary:  lipgloss.Color("#7c83fd"),
		Background: lipgloss.Color("#0d1117"),
		Surface:    lipgloss.Color("#161b22"),
		Success:    lipgloss.Color("#3fb950"),
		Error:      lipgloss.Color("#f85149"),
		Warning:    lipgloss.Color("#d29922"),
		Text:       lipgloss.Color("#c9d1d9"),
	},
	{
		Name:       "High Contrast",
		Primary:    lipgloss.Color("#ffffff"),
		Secondary:  lipgloss.Color("#ffd866"),
		Background: lipgloss.Color("#000000"),
		Surface:    lipgloss.Color("#111111"),
		Success:    lipgloss.Color("#00ff88"),
		Error:      lipgloss.Color("#ff4444"),
		Warning:    lipgloss.Color("#ffaa00"),
		Text:       lipgloss.Color("#ffffff"),
	},
}
