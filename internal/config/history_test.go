package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshotAndLoadHistory_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewStore(FleetConfig{Agents: []AgentDescriptor{validAgent("a")}}, dir, nil, zerolog.Nop())
	_, err := store.Apply(FleetConfig{Agents: []AgentDescriptor{validAgent("a"), validAgent("b")}})
	require.NoError(t, err)

	loaded, err := LoadHistory(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 1, loaded[0].Number)
	assert.Equal(t, 2, loaded[1].Number)
	assert.Len(t, loaded[1].Config.Agents, 2)
}

func TestLoadHistory_MissingDirReturnsEmpty(t *testing.T) {
	loaded, err := LoadHistory(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
