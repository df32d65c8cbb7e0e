package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/events"
)

// StartAgent starts name. It is idempotent: calling it on an agent that is
// already Running, Degraded, or Starting is a no-op. waitForHealth mirrors
// the fleet-wide Start's behavior of blocking until the agent's configured
// health check reports Healthy (if one is set); passing false returns as
// soon as the process has spawned.
func (m *Manager) StartAgent(ctx context.Context, name string, waitForHealth bool) error {
	descriptor, ok := m.store.Current().Config.AgentByName(name)
	if !ok {
		return fmt.Errorf("manager: unknown agent %q", name)
	}
	r, ok := m.Record(name)
	if !ok {
		return fmt.Errorf("manager: unknown agent %q", name)
	}

	switch r.State() {
	case agent.Running, agent.Degraded, agent.Starting:
		return nil
	}

	return m.startOne(ctx, name, descriptor, r, waitForHealth)
}

// StopAgent stops name gracefully, escalating to a forced kill after
// timeout. It is idempotent: stopping an agent that is already stopped,
// failed, disabled, or never started is a no-op. timeout <= 0 uses the
// manager's default stop grace.
func (m *Manager) StopAgent(ctx context.Context, name string, timeout time.Duration) error {
	r, ok := m.Record(name)
	if !ok {
		return fmt.Errorf("manager: unknown agent %q", name)
	}

	switch r.State() {
	case agent.Stopped, agent.Failed, agent.Pending, agent.Disabled:
		return nil
	}

	if timeout <= 0 {
		timeout = defaultStopGrace
	}
	r.RequestStop(timeout)
	return nil
}

// RestartAgent is equivalent to a serial StopAgent then StartAgent: it stops
// name if running, then spawns it again and waits for the configured
// startup-health check exactly as an initial start would.
func (m *Manager) RestartAgent(ctx context.Context, name string) error {
	descriptor, ok := m.store.Current().Config.AgentByName(name)
	if !ok {
		return fmt.Errorf("manager: unknown agent %q", name)
	}
	r, ok := m.Record(name)
	if !ok {
		return fmt.Errorf("manager: unknown agent %q", name)
	}

	switch r.State() {
	case agent.Running, agent.Degraded, agent.Starting, agent.Stopping:
		r.RequestStop(defaultStopGrace)
	}

	return m.startOne(ctx, name, descriptor, r, true)
}

// EmergencyStop force-kills every supervised agent's process group
// immediately, bypassing grace periods and dependency tiers, and cancels
// every pending scheduled restart so none fires afterward. It is
// best-effort: a single agent's kill failing does not stop the others from
// being attempted.
func (m *Manager) EmergencyStop(ctx context.Context) error {
	m.cancelAllRestartTimers()

	m.mu.Lock()
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		r, ok := m.Record(name)
		if !ok {
			continue
		}
		wg.Add(1)
		name, r := name, r
		go func() {
			defer wg.Done()
			m.log.Warn().Str("agent", name).Msg("emergency_stop: force-killing agent")
			r.ForceStop()
		}()
	}
	wg.Wait()

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.ManagerShutdown, "manager", map[string]interface{}{"emergency": true})
	}

	return nil
}
