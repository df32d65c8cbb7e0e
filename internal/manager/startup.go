package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/health"
)

// defaultHealthyTimeout bounds how long Start waits for an agent with a
// configured health check to report Healthy before treating the agent (and
// everything that depends on it) as failed-to-start.
const defaultHealthyTimeout = 30 * time.Second

// Start brings up every enabled agent in dependency order. Agents with no
// unstarted dependency between them are started concurrently, bounded by
// the worker pool's capacity (max_parallel_spawns); the next dependency
// level only begins once every agent in the current level has either become
// healthy or been marked failed, so a failed dependency correctly blocks its
// dependents rather than racing ahead of them. If the fleet config sets
// halt_on_failure and any agent in a tier fails to start, remaining tiers
// are aborted and Start returns an error reporting the partial result;
// otherwise startup proceeds through every tier regardless of failures.
func (m *Manager) Start(ctx context.Context) error {
	m.pool.Start()
	m.scheduleMaintenance()
	m.scheduleResourceSampling(ctx)
	m.cron.Start()
	m.WatchConfig(ctx)

	graph, err := m.dependencyGraph()
	if err != nil {
		return err
	}
	order, err := graph.StartOrder()
	if err != nil {
		return err
	}

	cfg := m.store.Current().Config
	levels := groupByLevel(order, cfg)

	failed := make(map[string]bool)
	var failedMu sync.Mutex
	halted := false

	for _, level := range levels {
		var wg sync.WaitGroup
		var levelFailures int32

		for _, name := range level {
			descriptor, ok := cfg.AgentByName(name)
			if !ok {
				continue
			}
			r, ok := m.Record(name)
			if !ok {
				continue
			}

			failedMu.Lock()
			blocked := dependsOnFailed(descriptor, failed)
			failedMu.Unlock()

			if blocked {
				failedMu.Lock()
				failed[name] = true
				failedMu.Unlock()
				r.MarkFailed()
				m.log.Warn().Str("agent", name).Msg("skipping start: a dependency failed to start")
				continue
			}

			if descriptor.Disabled || !descriptor.AutoStart {
				r.MarkDisabled()
				continue
			}

			wg.Add(1)
			name, descriptor, r := name, descriptor, r
			m.pool.Submit(func() {
				defer wg.Done()
				if err := m.startOne(ctx, name, descriptor, r, true); err != nil {
					failedMu.Lock()
					failed[name] = true
					failedMu.Unlock()
					atomic.AddInt32(&levelFailures, 1)
					m.log.Error().Err(err).Str("agent", name).Msg("agent failed to start")
				}
			})
		}

		wg.Wait()

		if cfg.HaltOnFailure && atomic.LoadInt32(&levelFailures) > 0 {
			m.log.Warn().Msg("halt_on_failure: a dependency tier failed, aborting remaining startup tiers")
			halted = true
			break
		}
	}

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.ManagerStarted, "manager", map[string]interface{}{
			"agent_count": len(cfg.Agents),
			"halted":      halted,
		})
	}

	if halted {
		return fmt.Errorf("manager: startup halted after failure in a dependency tier (halt_on_failure=true); %d agent(s) failed", len(failed))
	}

	return nil
}

// startOne spawns descriptor's process and, once launched, either waits for
// it to report healthy (waitForHealth, when a health check is configured)
// or returns immediately after the spawn and the supervision goroutine are
// in place.
func (m *Manager) startOne(ctx context.Context, name string, descriptor config.AgentDescriptor, r *agent.Record, waitForHealth bool) error {
	if err := r.Spawn(ctx); err != nil {
		return err
	}
	m.supervise(ctx, name, r)

	if m.deps.Events != nil {
		m.deps.Events.Emit(events.AgentSpawned, "manager", map[string]interface{}{"agent_name": name})
	}

	if !waitForHealth || descriptor.HealthCheck.URL == "" || m.deps.Prober == nil {
		return nil
	}

	timeout := defaultHealthyTimeout
	if descriptor.HealthCheck.Timeout > 0 {
		timeout = descriptor.HealthCheck.Timeout * 10
	}

	probeTimeout := descriptor.HealthCheck.Timeout
	url := descriptor.HealthCheck.URL

	return r.AwaitHealthy(ctx, func(c context.Context) health.Sample {
		return m.deps.Prober.Probe(c, url, probeTimeout)
	}, timeout)
}

// groupByLevel partitions a topologically sorted set of agent names into
// waves: level[i] contains every agent whose longest dependency chain has
// length i. Agents within a wave have no ordering constraint between them
// and are safe to start concurrently.
func groupByLevel(order []string, cfg config.FleetConfig) [][]string {
	level := make(map[string]int, len(order))

	for _, name := range order {
		descriptor, ok := cfg.AgentByName(name)
		if !ok {
			continue
		}
		max := -1
		for _, dep := range descriptor.DependsOn {
			if l, ok := level[dep]; ok && l > max {
				max = l
			}
		}
		level[name] = max + 1
	}

	var levels [][]string
	for _, name := range order {
		l := level[name]
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], name)
	}
	return levels
}

func dependsOnFailed(descriptor config.AgentDescriptor, failed map[string]bool) bool {
	for _, dep := range descriptor.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}
