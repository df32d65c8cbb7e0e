// Package config implements the fleet configuration store: loading,
// validating, versioning, applying, and rolling back the set of agents an
// Agent Manager supervises.
package config

import "time"

// HealthCheckSpec configures how an agent's liveness is probed.
type HealthCheckSpec struct {
	URL              string        `yaml:"url"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// RestartPolicySpec is the YAML-facing shape of a restart policy; it is
// translated into restart.Policy by the manager each time it handles an
// unexpected exit.
type RestartPolicySpec struct {
	Type         string        `yaml:"type"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       time.Duration `yaml:"jitter"`
	MaxRestarts  int           `yaml:"max_restarts"`
	Window       time.Duration `yaml:"window"`
}

// ResourceThresholdSpec holds the trigger values for one resource severity
// tier. A zero field means that metric is not monitored at this tier.
type ResourceThresholdSpec struct {
	CPUPercent float64 `yaml:"cpu_percent"`
	RSSBytes   uint64  `yaml:"rss_bytes"`
}

// ResourceLimitsSpec configures resource thresholds at three severities.
// Warning only ever reports (resource.threshold_exceeded). Critical has the
// manager restart the agent GracePeriod after the first Critical sample;
// later samples are not re-checked, so the restart happens even if usage
// has dropped back in the meantime. Emergency force-kills the agent
// immediately and restarts it.
type ResourceLimitsSpec struct {
	Warning   ResourceThresholdSpec `yaml:"warning"`
	Critical  ResourceThresholdSpec `yaml:"critical"`
	Emergency ResourceThresholdSpec `yaml:"emergency"`
	// GracePeriod is how long after a Critical breach the manager restarts
	// the agent; zero uses the manager's default.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// AgentDescriptor is the declarative definition of one supervised agent.
type AgentDescriptor struct {
	Name       string            `yaml:"name"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	WorkingDir string            `yaml:"working_dir"`

	DependsOn []string `yaml:"depends_on"`
	Priority  int      `yaml:"priority"`
	AutoStart bool     `yaml:"auto_start"`
	Disabled  bool     `yaml:"disabled"`

	HealthCheck   HealthCheckSpec    `yaml:"health_check"`
	RestartPolicy RestartPolicySpec  `yaml:"restart_policy"`
	Resources     ResourceLimitsSpec `yaml:"resources"`
}

// FleetConfig is the root document describing an entire fleet of agents
// plus the manager-wide settings that apply to all of them.
type FleetConfig struct {
	MaxParallelSpawns int    `yaml:"max_parallel_spawns"`
	DataDir           string `yaml:"data_dir"`
	// HaltOnFailure, when true, aborts orchestrated startup's remaining
	// dependency tiers the moment any agent in the current tier fails to
	// start; when false (the default) startup proceeds through every tier,
	// cascading the failure only to that agent's own dependents.
	HaltOnFailure bool              `yaml:"halt_on_failure"`
	Agents        []AgentDescriptor `yaml:"agents"`
}

// AgentByName returns the descriptor named name, or false if absent.
func (c FleetConfig) AgentByName(name string) (AgentDescriptor, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDescriptor{}, false
}
