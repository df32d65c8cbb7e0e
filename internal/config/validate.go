package config

import (
	"fmt"

	"github.com/fleetkeeper/core/internal/depgraph"
	"github.com/fleetkeeper/core/internal/restart"
)

// ValidationError reports one problem found while validating a FleetConfig.
// A single Validate call can surface many of these at once.
type ValidationError struct {
	Agent   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Agent == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("agent %q: %s: %s", e.Agent, e.Field, e.Message)
}

var validRestartTypes = map[string]bool{
	string(restart.Immediate):          true,
	string(restart.Delayed):            true,
	string(restart.ExponentialBackoff): true,
	string(restart.Manual):             true,
}

// Validate checks a FleetConfig for structural problems: duplicate names,
// dangling depends_on references, dependency cycles, and nonsensical field
// values. It returns every problem found, not just the first.
func Validate(cfg FleetConfig) []error {
	var errs []error

	seen := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.Name == "" {
			errs = append(errs, &ValidationError{Field: "name", Message: "agent name must not be empty"})
			continue
		}
		if seen[a.Name] {
			errs = append(errs, &ValidationError{Agent: a.Name, Field: "name", Message: "duplicate agent name"})
		}
		seen[a.Name] = true

		if a.Command == "" {
			errs = append(errs, &ValidationError{Agent: a.Name, Field: "command", Message: "command must not be empty"})
		}

		if a.RestartPolicy.Type != "" && !validRestartTypes[a.RestartPolicy.Type] {
			errs = append(errs, &ValidationError{
				Agent:   a.Name,
				Field:   "restart_policy.type",
				Message: fmt.Sprintf("unknown restart policy type %q", a.RestartPolicy.Type),
			})
		}

		if a.HealthCheck.URL != "" {
			if a.HealthCheck.Interval <= 0 {
				errs = append(errs, &ValidationError{Agent: a.Name, Field: "health_check.interval", Message: "must be positive when url is set"})
			}
			if a.HealthCheck.Timeout <= 0 {
				errs = append(errs, &ValidationError{Agent: a.Name, Field: "health_check.timeout", Message: "must be positive when url is set"})
			}
		}
	}

	if cfg.MaxParallelSpawns < 0 {
		errs = append(errs, &ValidationError{Field: "max_parallel_spawns", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		// Dependency-graph checks assume well-formed names; skip them if the
		// basic shape checks above already failed.
		return errs
	}

	nodes := make([]depgraph.Node, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		nodes = append(nodes, depgraph.Node{Name: a.Name, Priority: a.Priority, DependsOn: a.DependsOn})
	}

	graph, err := depgraph.New(nodes)
	if err != nil {
		return []error{err}
	}
	if _, err := graph.StartOrder(); err != nil {
		return []error{err}
	}

	return nil
}
