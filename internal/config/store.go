package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/events"
	"github.com/rs/zerolog"
)

// defaultMaxHistory bounds the in-memory version history kept by a Store
// when the caller does not specify one.
const defaultMaxHistory = 10

// Version is one applied snapshot of a FleetConfig.
type Version struct {
	Number    int
	Config    FleetConfig
	AppliedAt time.Time
}

// Diff summarizes the agent-level differences between two FleetConfig
// versions.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Subscription identifies a registered change callback so it can later be
// removed.
type Subscription uint64

// Store holds the currently active FleetConfig plus a bounded history of
// prior versions, and notifies subscribers whenever a new version is
// applied. It mirrors every applied version to disk (see history.go) and,
// when configured, to S3-compatible object storage (see s3backup.go).
type Store struct {
	mu sync.RWMutex

	current Version
	history []Version
	maxLen  int

	dataDir string
	backup  *s3Backup // nil when not configured

	subscribers map[Subscription]func(Version)
	nextSubID   uint64

	events *events.Manager
	log    zerolog.Logger
}

// NewStore creates a Store seeded with initial as version 1. dataDir is
// where version snapshots are mirrored to disk; pass "" to disable disk
// mirroring (tests typically do). em and log may be the zero value /
// zerolog.Nop() for a Store used outside a running manager.
func NewStore(initial FleetConfig, dataDir string, em *events.Manager, log zerolog.Logger) *Store {
	s := &Store{
		current:     Version{Number: 1, Config: initial, AppliedAt: time.Now()},
		maxLen:      defaultMaxHistory,
		dataDir:     dataDir,
		subscribers: make(map[Subscription]func(Version)),
		events:      em,
		log:         log.With().Str("component", "config_store").Logger(),
	}
	s.history = append(s.history, s.current)
	if dataDir != "" {
		if err := writeSnapshot(dataDir, s.current); err != nil {
			s.log.Warn().Err(err).Msg("failed to mirror initial config version to disk")
		}
	}
	return s
}

// WithS3Backup attaches an S3-compatible backup target; every subsequently
// applied version is archived there in addition to the local disk mirror.
func (s *Store) WithS3Backup(b *s3Backup) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backup = b
	return s
}

// Current returns the active FleetConfig version.
func (s *Store) Current() Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply validates cfg, and if valid, makes it the active version, appends it
// to history (evicting the oldest entry once maxLen is exceeded), mirrors it
// to disk/S3, emits a config.applied event, and notifies subscribers. On
// validation failure the Store is left unchanged and the caller gets back
// the validation errors, and a config.rejected event is emitted so
// subscribers can observe rejected proposals.
func (s *Store) Apply(cfg FleetConfig) (Version, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		if s.events != nil {
			s.events.Emit(events.ConfigRejected, "config", map[string]interface{}{
				"reason": errs[0].Error(),
			})
		}
		return Version{}, fmt.Errorf("config: apply rejected: %w", errs[0])
	}

	s.mu.Lock()
	next := Version{Number: s.current.Number + 1, Config: cfg, AppliedAt: time.Now()}
	s.current = next
	s.history = append(s.history, next)
	if len(s.history) > s.maxLen {
		s.history = s.history[len(s.history)-s.maxLen:]
	}
	dataDir := s.dataDir
	backup := s.backup
	subscribers := s.snapshotSubscribers()
	s.mu.Unlock()

	if dataDir != "" {
		if err := writeSnapshot(dataDir, next); err != nil {
			s.log.Warn().Err(err).Int("version", next.Number).Msg("failed to mirror config version to disk")
		}
	}
	if backup != nil {
		if err := backup.archive(next); err != nil {
			s.log.Warn().Err(err).Int("version", next.Number).Msg("failed to archive config version to object storage")
		}
	}

	if s.events != nil {
		s.events.Emit(events.ConfigApplied, "config", map[string]interface{}{
			"version":     next.Number,
			"agent_count": len(next.Config.Agents),
		})
	}

	for _, fn := range subscribers {
		go fn(next)
	}

	return next, nil
}

// Rollback reverts to the version numbered target, re-applying it as a new
// version so the history remains an append-only log of what was active and
// when, never rewriting the past.
func (s *Store) Rollback(target int) (Version, error) {
	s.mu.RLock()
	var found *FleetConfig
	for _, v := range s.history {
		if v.Number == target {
			cfg := v.Config
			found = &cfg
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return Version{}, fmt.Errorf("config: no history entry for version %d", target)
	}

	next, err := s.Apply(*found)
	if err != nil {
		return Version{}, err
	}

	if s.events != nil {
		s.events.Emit(events.ConfigRolledBack, "config", map[string]interface{}{
			"rolled_back_to": target,
			"new_version":    next.Number,
		})
	}

	return next, nil
}

// Diff compares two versions by number and reports which agents were added,
// removed, or changed (by descriptor inequality) between them.
func (s *Store) Diff(fromVersion, toVersion int) (Diff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, ok := s.versionByNumber(fromVersion)
	if !ok {
		return Diff{}, fmt.Errorf("config: no history entry for version %d", fromVersion)
	}
	to, ok := s.versionByNumber(toVersion)
	if !ok {
		return Diff{}, fmt.Errorf("config: no history entry for version %d", toVersion)
	}

	return diffConfigs(from.Config, to.Config), nil
}

func (s *Store) versionByNumber(n int) (Version, bool) {
	for _, v := range s.history {
		if v.Number == n {
			return v, true
		}
	}
	return Version{}, false
}

func diffConfigs(from, to FleetConfig) Diff {
	var d Diff

	fromByName := make(map[string]AgentDescriptor, len(from.Agents))
	for _, a := range from.Agents {
		fromByName[a.Name] = a
	}
	toByName := make(map[string]AgentDescriptor, len(to.Agents))
	for _, a := range to.Agents {
		toByName[a.Name] = a
	}

	for name, toAgent := range toByName {
		fromAgent, existed := fromByName[name]
		switch {
		case !existed:
			d.Added = append(d.Added, name)
		case !agentEqual(fromAgent, toAgent):
			d.Changed = append(d.Changed, name)
		}
	}
	for name := range fromByName {
		if _, stillExists := toByName[name]; !stillExists {
			d.Removed = append(d.Removed, name)
		}
	}

	return d
}

func agentEqual(a, b AgentDescriptor) bool {
	if a.Command != b.Command || a.WorkingDir != b.WorkingDir || a.Priority != b.Priority ||
		a.AutoStart != b.AutoStart || a.Disabled != b.Disabled {
		return false
	}
	if len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	if len(a.DependsOn) != len(b.DependsOn) {
		return false
	}
	for i := range a.DependsOn {
		if a.DependsOn[i] != b.DependsOn[i] {
			return false
		}
	}
	if a.HealthCheck != b.HealthCheck || a.RestartPolicy != b.RestartPolicy || a.Resources != b.Resources {
		return false
	}
	if len(a.Env) != len(b.Env) {
		return false
	}
	for k, v := range a.Env {
		if b.Env[k] != v {
			return false
		}
	}
	return true
}

// Subscribe registers fn to be called with every newly applied Version.
// Callbacks run in their own goroutine, same discipline as events.Bus, so a
// slow subscriber never blocks Apply.
func (s *Store) Subscribe(fn func(Version)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := Subscription(s.nextSubID)
	s.subscribers[id] = fn
	return id
}

// Unsubscribe removes a previously registered callback. Safe to call more
// than once.
func (s *Store) Unsubscribe(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, sub)
}

func (s *Store) snapshotSubscribers() []func(Version) {
	out := make([]func(Version), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}
