// Package main is the entry point for fleet-top, a terminal dashboard that
// polls a fleet-adapter instance and renders live agent status as a table.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fleetkeeper/core/internal/tui"
)

func main() {
	apiURL := flag.String("api-url", "http://localhost:8080", "fleet-adapter base URL")
	refresh := flag.Duration("refresh", 2*time.Second, "polling interval")
	flag.Parse()

	client := tui.NewClient(*apiURL)
	m := tui.NewModel(client, *apiURL, *refresh)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "fleet-top: %v\n", err)
		os.Exit(1)
	}
}
