package manager

import (
	"context"
	"testing"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmergencyResourceThresholdForceKillsAndRestarts(t *testing.T) {
	spawner := &fakeSpawner{}
	cfg := testConfig(config.AgentDescriptor{
		Name: "a", Command: "/bin/true", AutoStart: true,
		Resources: config.ResourceLimitsSpec{
			Emergency: config.ResourceThresholdSpec{CPUPercent: 90},
		},
	})
	m, _ := testManager(t, spawner, cfg)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	assert.Eventually(t, func() bool {
		st, err := m.Status("a")
		return err == nil && st.State == agent.Running
	}, time.Second, time.Millisecond)

	r, ok := m.Record("a")
	require.True(t, ok)

	m.checkResourceThresholds(context.Background(), "a", r, resources.Sample{CPUPercent: 95})

	assert.Eventually(t, func() bool {
		st, err := m.Status("a")
		return err == nil && st.RestartCount >= 1 && st.State == agent.Running
	}, time.Second, time.Millisecond)
}

func TestManager_CriticalResourceThresholdSchedulesRestartAfterGrace(t *testing.T) {
	spawner := &fakeSpawner{}
	cfg := testConfig(config.AgentDescriptor{
		Name: "a", Command: "/bin/true", AutoStart: true,
		Resources: config.ResourceLimitsSpec{
			Critical: config.ResourceThresholdSpec{RSSBytes: 1000},
		},
	})
	m, _ := testManager(t, spawner, cfg)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	assert.Eventually(t, func() bool {
		st, err := m.Status("a")
		return err == nil && st.State == agent.Running
	}, time.Second, time.Millisecond)

	r, ok := m.Record("a")
	require.True(t, ok)

	m.checkResourceThresholds(context.Background(), "a", r, resources.Sample{RSSBytes: 2000})

	assert.Eventually(t, func() bool {
		st, err := m.Status("a")
		return err == nil && st.RestartCount >= 1 && st.State == agent.Running
	}, time.Second, time.Millisecond)
}

func TestManager_WarningResourceThresholdDoesNotRestart(t *testing.T) {
	spawner := &fakeSpawner{}
	cfg := testConfig(config.AgentDescriptor{
		Name: "a", Command: "/bin/true", AutoStart: true,
		Resources: config.ResourceLimitsSpec{
			Warning: config.ResourceThresholdSpec{CPUPercent: 50},
		},
	})
	m, _ := testManager(t, spawner, cfg)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	assert.Eventually(t, func() bool {
		st, err := m.Status("a")
		return err == nil && st.State == agent.Running
	}, time.Second, time.Millisecond)

	r, ok := m.Record("a")
	require.True(t, ok)
	pidBefore := r.PID()

	m.checkResourceThresholds(context.Background(), "a", r, resources.Sample{CPUPercent: 75})

	time.Sleep(50 * time.Millisecond)
	st, err := m.Status("a")
	require.NoError(t, err)
	assert.Equal(t, agent.Running, st.State)
	assert.Equal(t, pidBefore, st.PID)
}
