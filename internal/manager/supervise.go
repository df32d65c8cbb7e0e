package manager

import (
	"context"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/restart"
)

// supervise watches r for its next exit and, unless that exit followed a
// manager-initiated RequestStop, consults the agent's restart policy and
// reacts. It is launched once per successful Spawn (initial start or
// restart) and exits after handling exactly one exit, since the restart
// path (or a fresh Start) launches a new supervise goroutine for the
// respawned process.
func (m *Manager) supervise(ctx context.Context, name string, r *agent.Record) {
	pid := r.PID()
	ch := r.ObserveExit()
	go func() {
		select {
		case <-ctx.Done():
			return
		case result := <-ch:
			if f, ok := m.deps.Sampler.(interface{ Forget(int32) }); ok {
				f.Forget(int32(pid))
			}
			if r.WasStopIntentional() {
				return
			}
			m.handleUnexpectedExit(ctx, name, r, result)
		}
	}()
}

func (m *Manager) handleUnexpectedExit(ctx context.Context, name string, r *agent.Record, result agent.ExitResult) {
	descriptor, ok := m.store.Current().Config.AgentByName(name)
	if !ok {
		return
	}

	m.log.Warn().Str("agent", name).Int("exit_code", result.ExitCode).Msg("agent exited unexpectedly")

	policy := restartPolicyFromSpec(descriptor.RestartPolicy)
	history := r.RestartHistory()
	now := m.deps.Clock.Now()

	decision := restart.Decide(policy, history, now, restart.DefaultJitter)

	switch decision.Action {
	case restart.ActionExhausted:
		r.MarkFailed()
		if m.deps.Events != nil {
			m.deps.Events.Emit(events.AgentRestartExhausted, "manager", map[string]interface{}{"agent_name": name})
		}

	case restart.ActionHoldForManual:
		r.MarkFailed()

	case restart.ActionRestartNow:
		m.restartAgent(ctx, name, r)

	case restart.ActionRestartAfterDelay:
		m.scheduleRestart(ctx, name, r, decision.Delay)
	}
}

func (m *Manager) scheduleRestart(ctx context.Context, name string, r *agent.Record, delay time.Duration) {
	timerCtx, cancel := context.WithCancel(ctx)
	id := restart.NewTimerID()

	m.mu.Lock()
	m.restartTimers[name] = restartTimer{id: id, cancel: cancel}
	m.mu.Unlock()

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.AgentRestartScheduled, "manager", map[string]interface{}{
			"agent_name": name,
			"delay_ms":   delay.Milliseconds(),
			"timer_id":   string(id),
		})
	}

	go func() {
		select {
		case <-timerCtx.Done():
			return
		case <-m.deps.Clock.After(delay):
		}

		m.mu.Lock()
		if current, ok := m.restartTimers[name]; !ok || current.id != id {
			m.mu.Unlock()
			return
		}
		delete(m.restartTimers, name)
		m.mu.Unlock()

		m.restartAgent(ctx, name, r)
	}()
}

func (m *Manager) restartAgent(ctx context.Context, name string, r *agent.Record) {
	r.RecordRestartAttempt(m.deps.Clock.Now())

	if err := r.Spawn(ctx); err != nil {
		m.log.Error().Err(err).Str("agent", name).Msg("restart attempt failed to spawn")
		r.MarkFailed()
		return
	}

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.AgentSpawned, "manager", map[string]interface{}{"agent_name": name, "restart": true})
	}

	m.supervise(ctx, name, r)
}

// cancelAllRestartTimers cancels every pending scheduled restart, crash-
// driven or resource-driven, used during shutdown and emergency_stop so a
// delayed restart can never fire after the manager has stopped.
func (m *Manager) cancelAllRestartTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, t := range m.restartTimers {
		t.cancel()
		delete(m.restartTimers, name)
	}
	for name, cancel := range m.resourceRestartTimers {
		cancel()
		delete(m.resourceRestartTimers, name)
	}
}

func restartPolicyFromSpec(spec config.RestartPolicySpec) restart.Policy {
	return restart.Policy{
		Type:         restart.Type(spec.Type),
		InitialDelay: spec.InitialDelay,
		MaxDelay:     spec.MaxDelay,
		Multiplier:   spec.Multiplier,
		Jitter:       spec.Jitter,
		MaxRestarts:  spec.MaxRestarts,
		Window:       spec.Window,
	}
}
