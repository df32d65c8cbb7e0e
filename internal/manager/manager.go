// Package manager implements the Agent Manager: the component that owns
// every supervised agent's Record, drives orchestrated startup/shutdown in
// dependency order, reacts to unexpected exits through the restart policy
// engine, and reconciles a running fleet against newly applied
// configuration.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/depgraph"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/health"
	"github.com/fleetkeeper/core/internal/resources"
	"github.com/fleetkeeper/core/internal/restart"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// defaultMaxParallelSpawns is used when a FleetConfig does not specify one.
const defaultMaxParallelSpawns = 4

// Deps bundles every capability-set collaborator the Manager needs, so
// production code and tests construct a Manager identically, only swapping
// which implementations they pass.
type Deps struct {
	Spawner agent.Spawner
	Prober  health.Prober
	Sampler resources.Sampler
	Clock   agent.Clock
	Events  *events.Manager
	// EventLog, if set, is swept periodically by the cron scheduler to
	// rotate it even between writes.
	EventLog *events.Log
	// HistoryRetention bounds how many on-disk config snapshots are kept;
	// zero uses defaultHistoryRetention.
	HistoryRetention int
	Log              zerolog.Logger
}

// Manager supervises every agent in a FleetConfig.
//
// Lock ordering: mu (manager-global) may be held while acquiring a single
// Record's own mutex, never the reverse.
type Manager struct {
	mu sync.Mutex

	store   *config.Store
	records map[string]*agent.Record

	deps Deps
	pool *workerPool
	cron *cron.Cron

	restartTimers map[string]restartTimer
	// resourceRestartTimers holds pending Critical-threshold restart timers,
	// keyed by agent name, separately from crash-driven restartTimers since
	// the two are scheduled and cancelled independently.
	resourceRestartTimers map[string]context.CancelFunc

	log zerolog.Logger
}

type restartTimer struct {
	id     restart.TimerID
	cancel context.CancelFunc
}

// AgentStatus is a read-only snapshot of one agent's current state, used by
// status_all() and every external surface (adapter, TUI).
type AgentStatus struct {
	Name         string
	State        agent.State
	PID          int
	HealthScore  float64
	RestartCount int
	Uptime       time.Duration
	LatestSample resources.Sample
	HasSample    bool
}

// New creates a Manager over the initial FleetConfig's agents. It does not
// start anything; call Start to begin orchestrated startup.
func New(store *config.Store, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = agent.RealClock{}
	}

	cfg := store.Current().Config
	maxParallel := cfg.MaxParallelSpawns
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelSpawns
	}

	log := deps.Log.With().Str("component", "manager").Logger()

	m := &Manager{
		store:                 store,
		records:               make(map[string]*agent.Record),
		deps:                  deps,
		pool:                  newWorkerPool(maxParallel, 0, log),
		cron:                  cron.New(),
		restartTimers:         make(map[string]restartTimer),
		resourceRestartTimers: make(map[string]context.CancelFunc),
		log:                   log,
	}

	for _, a := range cfg.Agents {
		m.records[a.Name] = agent.NewRecord(a, deps.Spawner, deps.Clock, log)
	}

	return m
}

// Record returns the Record for name, or false if no such agent exists.
func (m *Manager) Record(name string) (*agent.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[name]
	return r, ok
}

// Status returns a point-in-time snapshot of one agent's state.
func (m *Manager) Status(name string) (AgentStatus, error) {
	r, ok := m.Record(name)
	if !ok {
		return AgentStatus{}, fmt.Errorf("manager: unknown agent %q", name)
	}
	return m.statusOf(name, r), nil
}

// StatusAll returns a snapshot of every agent's state, ordered by name for
// a stable display in the TUI and adapter.
func (m *Manager) StatusAll() []AgentStatus {
	m.mu.Lock()
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)

	out := make([]AgentStatus, 0, len(names))
	for _, name := range names {
		r, _ := m.Record(name)
		out = append(out, m.statusOf(name, r))
	}
	return out
}

func (m *Manager) statusOf(name string, r *agent.Record) AgentStatus {
	sample, ok := r.ResourceRing().Latest()
	return AgentStatus{
		Name:         name,
		State:        r.State(),
		PID:          r.PID(),
		HealthScore:  r.HealthScore(),
		RestartCount: r.RestartCount(),
		Uptime:       r.Uptime(),
		LatestSample: sample,
		HasSample:    ok,
	}
}

// dependencyGraph builds a depgraph.Graph from the manager's current
// FleetConfig. The config has already passed config.Validate (which itself
// checks for cycles), so an error here would indicate an internal
// inconsistency between the Store's validated state and this computation.
func (m *Manager) dependencyGraph() (*depgraph.Graph, error) {
	cfg := m.store.Current().Config
	nodes := make([]depgraph.Node, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		nodes = append(nodes, depgraph.Node{Name: a.Name, Priority: a.Priority, DependsOn: a.DependsOn})
	}
	return depgraph.New(nodes)
}
