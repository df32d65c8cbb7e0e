package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/health"
	"github.com/fleetkeeper/core/internal/resources"
	"github.com/rs/zerolog"
)

// State is one point in an AgentRecord's lifecycle.
type State string

const (
	Pending  State = "pending"
	Starting State = "starting"
	Running  State = "running"
	Degraded State = "degraded"
	Stopping State = "stopping"
	Stopped  State = "stopped"
	Failed   State = "failed"
	Disabled State = "disabled"
)

// defaultTerminateGrace is how long Stop waits for a graceful exit before
// escalating to Kill, absent an explicit override.
const defaultTerminateGrace = 10 * time.Second

// Record is the live, mutable state of one supervised agent: its current
// lifecycle State, its running Process (if any), its rolling health score,
// and its bounded resource-sample history. Its exported methods are the
// spawn / await_healthy / request_stop / observe_exit operations; all of
// them are safe for concurrent use.
//
// Lock ordering: a caller holding a Manager-global lock may acquire a
// Record's mu, never the reverse.
type Record struct {
	mu sync.Mutex

	Descriptor config.AgentDescriptor
	state      State

	process  Process
	pid      int
	startsAt time.Time

	restartCount  int
	lastExit      ExitResult
	exitHistory   []time.Time
	stopRequested bool

	scorer *health.Scorer
	ring   *resources.Ring

	stdoutTail *Tail
	stderrTail *Tail

	spawner Spawner
	clock   Clock
	log     zerolog.Logger

	exitWatchers []chan ExitResult
}

// NewRecord creates a Record for descriptor in the Pending state.
func NewRecord(descriptor config.AgentDescriptor, spawner Spawner, clock Clock, log zerolog.Logger) *Record {
	if clock == nil {
		clock = RealClock{}
	}
	return &Record{
		Descriptor: descriptor,
		state:      Pending,
		scorer:     health.NewScorer(0.3),
		ring:       resources.NewRing(256),
		stdoutTail: NewTail(256),
		stderrTail: NewTail(256),
		spawner:    spawner,
		clock:      clock,
		log:        log.With().Str("component", "agent").Str("agent", descriptor.Name).Logger(),
	}
}

// State returns the agent's current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PID returns the current process's PID, or 0 if not running.
func (r *Record) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid
}

// RestartCount returns how many times this agent has been restarted.
func (r *Record) RestartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restartCount
}

// Uptime returns how long the current process has been running, or zero if
// not running.
func (r *Record) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Running && r.state != Degraded {
		return 0
	}
	return r.clock.Now().Sub(r.startsAt)
}

// HealthScore returns the agent's current rolling health score in [0, 100].
func (r *Record) HealthScore() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scorer.Score()
}

// ResourceRing exposes the agent's bounded resource sample history.
func (r *Record) ResourceRing() *resources.Ring {
	return r.ring
}

// setState transitions the record to next, logging the change. Callers must
// hold r.mu.
func (r *Record) setState(next State) {
	if r.state == next {
		return
	}
	r.log.Info().Str("from", string(r.state)).Str("to", string(next)).Msg("agent state changed")
	r.state = next
}

// Spawn starts the agent's process. It is only valid from Pending, Stopped,
// or Failed (a manual or policy-driven restart), and from Disabled when the
// descriptor itself is not Disabled (an auto_start=false agent started by
// hand).
func (r *Record) Spawn(ctx context.Context) error {
	r.mu.Lock()
	startable := r.state == Pending || r.state == Stopped || r.state == Failed ||
		(r.state == Disabled && !r.Descriptor.Disabled)
	if !startable {
		current := r.state
		r.mu.Unlock()
		return &LifecycleError{Agent: r.Descriptor.Name, CurrentState: current, Message: "spawn not permitted from this state"}
	}
	r.setState(Starting)
	r.stopRequested = false
	r.mu.Unlock()

	spec := ProcessSpec{
		Command:    r.Descriptor.Command,
		Args:       r.Descriptor.Args,
		Env:        envSliceFromMap(r.Descriptor.Env),
		WorkingDir: r.Descriptor.WorkingDir,
		Stdout:     r.stdoutTail,
		Stderr:     r.stderrTail,
	}

	proc, err := r.spawner.Spawn(ctx, spec)
	if err != nil {
		r.mu.Lock()
		r.setState(Failed)
		r.mu.Unlock()
		return &SpawnError{Agent: r.Descriptor.Name, Message: "spawner returned an error", Err: err}
	}

	r.mu.Lock()
	r.process = proc
	r.pid = proc.Pid()
	r.startsAt = r.clock.Now()
	r.setState(Running)
	r.mu.Unlock()

	go r.watchExit(proc)

	return nil
}

func (r *Record) watchExit(proc Process) {
	result := proc.Wait()

	r.mu.Lock()
	r.lastExit = result
	r.process = nil
	r.pid = 0
	r.setState(Stopped)
	watchers := r.exitWatchers
	r.exitWatchers = nil
	r.mu.Unlock()

	for _, ch := range watchers {
		ch <- result
		close(ch)
	}
}

// AwaitHealthy blocks until a health probe reports Healthy, ctx is
// cancelled, or timeout elapses, whichever comes first. probe is supplied by
// the caller (the manager) since the URL to probe and its cadence are policy
// decisions outside Record's scope; Record only owns applying the result to
// its rolling score.
func (r *Record) AwaitHealthy(ctx context.Context, probeOnce func(context.Context) health.Sample, timeout time.Duration) error {
	deadline := r.clock.Now().Add(timeout)

	for {
		sample := probeOnce(ctx)
		r.ApplyHealthSample(sample)
		if sample.Status == health.Healthy {
			return nil
		}

		if r.clock.Now().After(deadline) {
			return fmt.Errorf("agent %q: did not become healthy within %s", r.Descriptor.Name, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(250 * time.Millisecond):
		}
	}
}

// ApplyHealthSample folds a probe outcome into the rolling health score and
// moves the record between Running and Degraded accordingly.
func (r *Record) ApplyHealthSample(sample health.Sample) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	score := r.scorer.Update(sample)
	if r.state == Running && sample.Status != health.Healthy {
		r.setState(Degraded)
	} else if r.state == Degraded && sample.Status == health.Healthy {
		r.setState(Running)
	}
	return score
}

// ApplyResourceSample records a resource sample in the bounded ring.
func (r *Record) ApplyResourceSample(sample resources.Sample) {
	r.ring.Push(sample)
}

// RequestStop asks the running process to exit gracefully, escalating to a
// forced kill after grace. It is a no-op if the agent is not running.
func (r *Record) RequestStop(grace time.Duration) ExitResult {
	r.mu.Lock()
	proc := r.process
	if proc == nil {
		state := r.state
		r.mu.Unlock()
		if state == Stopped || state == Failed || state == Pending {
			return r.lastExitLocked()
		}
		return ExitResult{}
	}
	if grace <= 0 {
		grace = defaultTerminateGrace
	}
	exited := make(chan ExitResult, 1)
	r.exitWatchers = append(r.exitWatchers, exited)
	r.stopRequested = true
	r.setState(Stopping)
	r.mu.Unlock()

	_ = proc.Terminate()
	select {
	case res := <-exited:
		return res
	case <-time.After(grace):
	}
	_ = proc.Kill()
	return <-exited
}

// ForceStop immediately force-kills the running process, bypassing the
// graceful-terminate-then-wait step RequestStop goes through. It is used for
// emergency_stop and Emergency-severity resource breaches, both of which
// must not wait out a grace period. It is a no-op if the agent has no
// running process.
func (r *Record) ForceStop() ExitResult {
	r.mu.Lock()
	proc := r.process
	if proc == nil {
		state := r.state
		r.mu.Unlock()
		if state == Stopped || state == Failed || state == Pending {
			return r.lastExitLocked()
		}
		return ExitResult{}
	}
	exited := make(chan ExitResult, 1)
	r.exitWatchers = append(r.exitWatchers, exited)
	r.stopRequested = true
	r.setState(Stopping)
	r.mu.Unlock()

	_ = proc.Kill()
	return <-exited
}

func (r *Record) lastExitLocked() ExitResult {
	return r.lastExit
}

// ObserveExit returns a channel that receives exactly one ExitResult the
// next time this agent's process exits, then closes. If the agent is not
// currently running, the channel receives the zero ExitResult immediately.
func (r *Record) ObserveExit() <-chan ExitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan ExitResult, 1)
	if r.process == nil {
		ch <- ExitResult{}
		close(ch)
		return ch
	}
	r.exitWatchers = append(r.exitWatchers, ch)
	return ch
}

// WasStopIntentional reports whether the most recent exit followed a
// RequestStop call (a manager-initiated shutdown) rather than a crash, so
// the supervision loop knows not to apply the restart policy to it.
func (r *Record) WasStopIntentional() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopRequested
}

// RecordRestartAttempt appends now to the restart attempt history and
// increments the restart counter. Called by the manager right before
// re-spawning, so restart.Decide sees an up-to-date attempt window.
func (r *Record) RecordRestartAttempt(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restartCount++
	r.exitHistory = append(r.exitHistory, now)
}

// RestartHistory returns a copy of past restart attempt timestamps, oldest
// first, for restart.Decide to evaluate against the agent's policy window.
func (r *Record) RestartHistory() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.exitHistory))
	copy(out, r.exitHistory)
	return out
}

// MarkFailed transitions the record to Failed, used when the restart policy
// engine reports ActionExhausted.
func (r *Record) MarkFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(Failed)
}

// UpdateDescriptor replaces the record's descriptor, used by config
// reconciliation when an agent's definition changes. It does not itself
// restart anything; the caller decides whether the change requires one.
func (r *Record) UpdateDescriptor(d config.AgentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Descriptor = d
}

// MarkDisabled transitions the record to Disabled, used for agents whose
// descriptor has Disabled set or whose auto_start is false and which have
// never been started.
func (r *Record) MarkDisabled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(Disabled)
}

func envSliceFromMap(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
