package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFleetYAML = `
max_parallel_spawns: 4
agents:
  - name: api
    command: /usr/bin/api
    priority: 1
  - name: worker
    command: /usr/bin/worker
    depends_on: [api]
`

func TestLoad_ReadsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFleetYAML), 0o644))

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxParallelSpawns)
	assert.Len(t, cfg.Agents, 2)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(LoadOptions{ConfigPath: "/nonexistent/fleet.yaml"})
	assert.Error(t, err)
}

func TestLoad_InvalidConfigErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: \"\"\n"), 0o644))

	_, err := Load(LoadOptions{ConfigPath: path})
	assert.Error(t, err)
}

func TestResolveDataDir_Precedence(t *testing.T) {
	t.Setenv(envDataDir, "/from/env")
	assert.Equal(t, "/from/flag", ResolveDataDir("/from/flag"))
	assert.Equal(t, "/from/env", ResolveDataDir(""))

	t.Setenv(envDataDir, "")
	assert.Equal(t, defaultDataDir, ResolveDataDir(""))
}

func TestResolveConfigPath_Precedence(t *testing.T) {
	t.Setenv(envConfigPath, "/from/env.yaml")
	assert.Equal(t, "/from/flag.yaml", ResolveConfigPath("/from/flag.yaml", "/data"))
	assert.Equal(t, "/from/env.yaml", ResolveConfigPath("", "/data"))

	t.Setenv(envConfigPath, "")
	assert.Equal(t, "/data/fleet.yaml", ResolveConfigPath("", "/data"))
}
