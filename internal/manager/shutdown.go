package manager

import (
	"context"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/events"
)

// defaultStopGrace is how long RequestStop waits for a SIGTERM'd agent to
// exit on its own before escalating to SIGKILL.
const defaultStopGrace = 10 * time.Second

// Stop brings down every agent in reverse dependency order (dependents
// before their dependencies), cancels any pending restart timers so a
// shutdown is never raced by a scheduled restart, and stops the worker
// pool and cron scheduler once every agent has settled.
func (m *Manager) Stop(ctx context.Context) error {
	m.cancelAllRestartTimers()

	graph, err := m.dependencyGraph()
	if err != nil {
		return err
	}
	startOrder, err := graph.StartOrder()
	if err != nil {
		return err
	}

	cfg := m.store.Current().Config
	levels := groupByLevel(startOrder, cfg)

	for i := len(levels) - 1; i >= 0; i-- {
		var wg sync.WaitGroup
		for _, name := range levels[i] {
			r, ok := m.Record(name)
			if !ok {
				continue
			}
			wg.Add(1)
			name, r := name, r
			m.pool.Submit(func() {
				defer wg.Done()
				m.log.Info().Str("agent", name).Msg("stopping agent")
				r.RequestStop(defaultStopGrace)
			})
		}
		wg.Wait()
	}

	m.pool.Stop()
	m.cron.Stop()

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.ManagerShutdown, "manager", map[string]interface{}{})
	}

	return ctx.Err()
}
