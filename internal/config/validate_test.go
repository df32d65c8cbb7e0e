package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAgent(name string, deps ...string) AgentDescriptor {
	return AgentDescriptor{
		Name:      name,
		Command:   "/usr/bin/" + name,
		DependsOn: deps,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := FleetConfig{
		Agents: []AgentDescriptor{
			validAgent("db"),
			validAgent("api", "db"),
		},
	}
	assert.Empty(t, Validate(cfg))
}

func TestValidate_DuplicateName(t *testing.T) {
	cfg := FleetConfig{
		Agents: []AgentDescriptor{
			validAgent("api"),
			validAgent("api"),
		},
	}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidate_EmptyCommand(t *testing.T) {
	cfg := FleetConfig{
		Agents: []AgentDescriptor{
			{Name: "api"},
		},
	}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidate_UnknownRestartType(t *testing.T) {
	agent := validAgent("api")
	agent.RestartPolicy.Type = "sometimes"
	cfg := FleetConfig{Agents: []AgentDescriptor{agent}}

	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidate_HealthCheckMissingTimeout(t *testing.T) {
	agent := validAgent("api")
	agent.HealthCheck.URL = "http://localhost:8080/health"
	cfg := FleetConfig{Agents: []AgentDescriptor{agent}}

	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidate_DependencyCycle(t *testing.T) {
	cfg := FleetConfig{
		Agents: []AgentDescriptor{
			validAgent("a", "b"),
			validAgent("b", "a"),
		},
	}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}

func TestValidate_NegativeMaxParallelSpawns(t *testing.T) {
	cfg := FleetConfig{MaxParallelSpawns: -1}
	errs := Validate(cfg)
	assert.NotEmpty(t, errs)
}
