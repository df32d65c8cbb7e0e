package manager

import (
	"context"
	"time"

	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/resources"
)

// defaultSampleInterval is the cron schedule for the resource-sampling
// sweep; kept short since samples feed the bounded ring used for trend
// detection and the TUI's live view.
const defaultSampleInterval = "@every 10s"

// defaultResourceGracePeriod is used when a Critical tier does not specify
// its own grace_period.
const defaultResourceGracePeriod = 30 * time.Second

// scheduleResourceSampling registers the periodic sweep that samples every
// running agent's resource usage and checks it against the agent's
// configured severity thresholds.
func (m *Manager) scheduleResourceSampling(ctx context.Context) {
	if m.deps.Sampler == nil {
		return
	}
	_, err := m.cron.AddFunc(defaultSampleInterval, func() {
		m.sampleAll(ctx)
	})
	if err != nil {
		m.log.Error().Err(err).Msg("failed to register resource sampling job")
	}
}

func (m *Manager) sampleAll(ctx context.Context) {
	for _, status := range m.StatusAll() {
		if status.State != agent.Running && status.State != agent.Degraded {
			continue
		}
		if status.PID <= 0 {
			continue
		}
		r, ok := m.Record(status.Name)
		if !ok {
			continue
		}

		sample, err := m.deps.Sampler.Sample(ctx, int32(status.PID))
		if err != nil {
			continue
		}
		r.ApplyResourceSample(sample)
		m.checkResourceThresholds(ctx, status.Name, r, sample)
	}
}

// checkResourceThresholds classifies a resource sample against the agent's
// configured severity tiers, most severe first, and reacts: Warning only
// emits resource.threshold_exceeded, Critical schedules a restart for
// grace_period after the breach (without re-checking later samples), and
// Emergency force-kills the agent immediately and restarts it within the
// same sample interval.
func (m *Manager) checkResourceThresholds(ctx context.Context, name string, r *agent.Record, sample resources.Sample) {
	descriptor, ok := m.store.Current().Config.AgentByName(name)
	if !ok {
		return
	}
	limits := descriptor.Resources

	if reasons := exceedsTier(limits.Emergency, sample); len(reasons) > 0 {
		m.emitResourceEvent(name, "emergency", reasons, sample)
		m.log.Warn().Str("agent", name).Strs("exceeded", reasons).Msg("resource emergency threshold crossed: force-killing and restarting")
		r.ForceStop()
		m.restartAgent(ctx, name, r)
		return
	}

	if reasons := exceedsTier(limits.Critical, sample); len(reasons) > 0 {
		m.emitResourceEvent(name, "critical", reasons, sample)
		grace := limits.GracePeriod
		if grace <= 0 {
			grace = defaultResourceGracePeriod
		}
		m.scheduleResourceRestart(ctx, name, r, grace)
		return
	}

	if reasons := exceedsTier(limits.Warning, sample); len(reasons) > 0 {
		m.emitResourceEvent(name, "warning", reasons, sample)
	}
}

// scheduleResourceRestart arranges for name to be stopped and restarted
// after grace elapses, unless a resource-driven restart is already pending
// for it. Pending timers are cancelled alongside crash-restart timers on
// shutdown, so a pending resource restart can never fire after the manager
// has stopped.
func (m *Manager) scheduleResourceRestart(ctx context.Context, name string, r *agent.Record, grace time.Duration) {
	m.mu.Lock()
	if _, pending := m.resourceRestartTimers[name]; pending {
		m.mu.Unlock()
		return
	}
	timerCtx, cancel := context.WithCancel(ctx)
	m.resourceRestartTimers[name] = cancel
	m.mu.Unlock()

	go func() {
		select {
		case <-timerCtx.Done():
			return
		case <-m.deps.Clock.After(grace):
		}

		m.mu.Lock()
		delete(m.resourceRestartTimers, name)
		m.mu.Unlock()

		m.log.Warn().Str("agent", name).Msg("grace period after resource critical threshold elapsed: restarting")
		r.RequestStop(defaultStopGrace)
		m.restartAgent(ctx, name, r)
	}()
}

func exceedsTier(t config.ResourceThresholdSpec, sample resources.Sample) []string {
	var reasons []string
	if t.CPUPercent > 0 && sample.CPUPercent > t.CPUPercent {
		reasons = append(reasons, "cpu_percent")
	}
	if t.RSSBytes > 0 && sample.RSSBytes > t.RSSBytes {
		reasons = append(reasons, "rss_bytes")
	}
	return reasons
}

func (m *Manager) emitResourceEvent(name, severity string, reasons []string, sample resources.Sample) {
	if m.deps.Events == nil {
		return
	}
	m.deps.Events.Emit(events.ResourceThresholdExceeded, "manager", map[string]interface{}{
		"agent_name":  name,
		"severity":    severity,
		"cpu_percent": sample.CPUPercent,
		"rss_bytes":   sample.RSSBytes,
		"exceeded":    reasons,
	})
}
