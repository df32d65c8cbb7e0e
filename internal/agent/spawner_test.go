package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixSpawner_SpawnAndWait(t *testing.T) {
	spawner := NewUnixSpawner()
	proc, err := spawner.Spawn(context.Background(), ProcessSpec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
	assert.Greater(t, proc.Pid(), 0)

	result := proc.Wait()
	assert.Equal(t, 0, result.ExitCode)
}

func TestUnixSpawner_NonZeroExitCode(t *testing.T) {
	spawner := NewUnixSpawner()
	proc, err := spawner.Spawn(context.Background(), ProcessSpec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 7"},
	})
	require.NoError(t, err)

	result := proc.Wait()
	assert.Equal(t, 7, result.ExitCode)
	assert.Error(t, result.Err)
}

func TestUnixSpawner_UnknownCommandErrors(t *testing.T) {
	spawner := NewUnixSpawner()
	_, err := spawner.Spawn(context.Background(), ProcessSpec{Command: "/no/such/binary"})
	require.Error(t, err)
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestGracefulStop_TerminatesWithinGrace(t *testing.T) {
	spawner := NewUnixSpawner()
	proc, err := spawner.Spawn(context.Background(), ProcessSpec{
		Command: "/bin/sh",
		Args:    []string{"-c", "trap 'exit 0' TERM; sleep 5"},
	})
	require.NoError(t, err)

	start := time.Now()
	result := GracefulStop(proc, 2*time.Second)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, result.ExitCode)
}

func TestGracefulStop_EscalatesToKill(t *testing.T) {
	spawner := NewUnixSpawner()
	proc, err := spawner.Spawn(context.Background(), ProcessSpec{
		Command: "/bin/sh",
		Args:    []string{"-c", "trap '' TERM; sleep 5"},
	})
	require.NoError(t, err)

	start := time.Now()
	result := GracefulStop(proc, 200*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.NotEqual(t, 0, result.ExitCode)
}
