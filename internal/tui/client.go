package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetkeeper/core/internal/manager"
)

// Client is a thin HTTP client over a running fleet-adapter's status
// endpoints. The teacher's own TUI prototype talked to its API server the
// same way: a small wrapper around net/http with one method per endpoint,
// no generated client or extra dependency for a handful of GET requests.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type agentsResponse struct {
	Agents []manager.AgentStatus `json:"agents"`
}

// Agents fetches the status of every agent known to the fleet.
func (c *Client) Agents() ([]manager.AgentStatus, error) {
	resp, err := c.http.Get(c.baseURL + "/api/fleet/agents")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fleet-adapter returned %s", resp.Status)
	}

	var body agentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode agents response: %w", err)
	}
	return body.Agents, nil
}
