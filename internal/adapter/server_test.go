package adapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/manager"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, cfg config.FleetConfig) *Server {
	t.Helper()
	store := config.NewStore(cfg, "", nil, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	em := events.NewManager(bus, zerolog.Nop())
	m := manager.New(store, manager.Deps{Log: zerolog.Nop(), Events: em, Spawner: agent.NewUnixSpawner()})
	return New(m, store, bus, zerolog.Nop())
}

func TestServer_ListAgents(t *testing.T) {
	s := testServer(t, config.FleetConfig{Agents: []config.AgentDescriptor{
		{Name: "a", Command: "/bin/true"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/fleet/agents", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Agents []manager.AgentStatus `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Agents, 1)
	assert.Equal(t, "a", body.Agents[0].Name)
}

func TestServer_GetAgentNotFound(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/fleet/agents/missing", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_ApplyConfig(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	next := config.FleetConfig{Agents: []config.AgentDescriptor{
		{Name: "a", Command: "/bin/true"},
	}}
	raw, err := json.Marshal(next)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, s.store.Current().Number)
}

func TestServer_RollbackUnknownVersion(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/config/rollback/99", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestServer_DiffInvalidVersion(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/config/diff/abc/1", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_StartAgentNotFound(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/agents/missing/start", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_StartAgentNoWaitReturnsOK(t *testing.T) {
	s := testServer(t, config.FleetConfig{Agents: []config.AgentDescriptor{
		{Name: "a", Command: "/bin/true"},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/agents/a/start?wait_for_health=false", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body["ok"])
}

func TestServer_StopAgentNotFound(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/agents/missing/stop", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_StopAgentAcceptsTimeoutQueryParam(t *testing.T) {
	s := testServer(t, config.FleetConfig{Agents: []config.AgentDescriptor{
		{Name: "a", Command: "/bin/true"},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/agents/a/stop?timeout_ms=50", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_RestartAgentNotFound(t *testing.T) {
	s := testServer(t, config.FleetConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/agents/missing/restart", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_EmergencyStopAlwaysReturnsOK(t *testing.T) {
	s := testServer(t, config.FleetConfig{Agents: []config.AgentDescriptor{
		{Name: "a", Command: "/bin/true"},
		{Name: "b", Command: "/bin/true"},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/fleet/emergency-stop", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body["ok"])
}
