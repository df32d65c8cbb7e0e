package manager

import (
	"context"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
)

// WatchConfig subscribes to the Store and reconciles the running fleet
// against every newly applied version until ctx is cancelled.
func (m *Manager) WatchConfig(ctx context.Context) {
	sub := m.store.Subscribe(func(v config.Version) {
		m.Reconcile(ctx, v)
	})
	go func() {
		<-ctx.Done()
		m.store.Unsubscribe(sub)
	}()
}

// Reconcile brings the running fleet in line with v, the newly applied
// configuration: agents added since the previous version are created and
// (if auto_start) spawned, agents removed are stopped and dropped, and
// agents whose descriptor changed get the new definition: a running agent
// whose launch fields (command, args, working directory, env) changed is
// restarted so the change takes effect, and every other change is applied
// in place without a restart (see updateAgent).
func (m *Manager) Reconcile(ctx context.Context, v config.Version) {
	diff, err := m.store.Diff(v.Number-1, v.Number)
	if err != nil {
		// No prior version to diff against (v is the Store's very first
		// version); nothing to reconcile.
		return
	}

	for _, name := range diff.Added {
		descriptor, ok := v.Config.AgentByName(name)
		if !ok {
			continue
		}
		m.addAgent(ctx, descriptor)
	}

	for _, name := range diff.Changed {
		descriptor, ok := v.Config.AgentByName(name)
		if !ok {
			continue
		}
		m.updateAgent(ctx, descriptor)
	}

	for _, name := range diff.Removed {
		m.removeAgent(name)
	}
}

func (m *Manager) addAgent(ctx context.Context, descriptor config.AgentDescriptor) {
	m.mu.Lock()
	r := agent.NewRecord(descriptor, m.deps.Spawner, m.deps.Clock, m.log)
	m.records[descriptor.Name] = r
	m.mu.Unlock()

	if descriptor.Disabled || !descriptor.AutoStart {
		r.MarkDisabled()
		return
	}

	if err := m.startOne(ctx, descriptor.Name, descriptor, r, true); err != nil {
		m.log.Error().Err(err).Str("agent", descriptor.Name).Msg("failed to start newly added agent")
	}
}

// updateAgent applies a changed descriptor to an existing agent. Only a
// change to the fields that define how the process is actually launched —
// start_command (command and args), working_directory, or
// environment_overrides — requires a restart; any other difference
// (resource limits, restart policy, health check cadence, priority) is
// hot-applied in place with no disruption to the running process.
func (m *Manager) updateAgent(ctx context.Context, descriptor config.AgentDescriptor) {
	r, ok := m.Record(descriptor.Name)
	if !ok {
		m.addAgent(ctx, descriptor)
		return
	}

	old := r.Descriptor
	wasRunning := r.State() == agent.Running || r.State() == agent.Degraded
	needsRestart := requiresRestart(old, descriptor)

	r.UpdateDescriptor(descriptor)

	if !needsRestart {
		if !wasRunning && descriptor.Disabled {
			r.MarkDisabled()
		}
		return
	}

	if !wasRunning {
		if descriptor.Disabled {
			r.MarkDisabled()
		}
		return
	}

	r.RequestStop(defaultStopGrace)

	if descriptor.Disabled || !descriptor.AutoStart {
		r.MarkDisabled()
		return
	}

	if err := m.startOne(ctx, descriptor.Name, descriptor, r, true); err != nil {
		m.log.Error().Err(err).Str("agent", descriptor.Name).Msg("failed to restart agent after config change")
	}
}

// requiresRestart reports whether next changes anything about how old's
// process is launched: its command, args, working directory, or
// environment. Any other field difference hot-applies without a restart.
func requiresRestart(old, next config.AgentDescriptor) bool {
	if old.Command != next.Command || old.WorkingDir != next.WorkingDir {
		return true
	}
	if len(old.Args) != len(next.Args) {
		return true
	}
	for i := range old.Args {
		if old.Args[i] != next.Args[i] {
			return true
		}
	}
	if len(old.Env) != len(next.Env) {
		return true
	}
	for k, v := range old.Env {
		if next.Env[k] != v {
			return true
		}
	}
	return false
}

func (m *Manager) removeAgent(name string) {
	r, ok := m.Record(name)
	if !ok {
		return
	}
	r.RequestStop(defaultStopGrace)

	m.mu.Lock()
	delete(m.records, name)
	delete(m.restartTimers, name)
	m.mu.Unlock()
}
