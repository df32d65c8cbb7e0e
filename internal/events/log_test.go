package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecordPersistsEvent(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(dir, 0, zerolog.Nop())
	require.NoError(t, err)
	defer l.Close()

	err = l.Record(&Event{
		Type:      AgentStateChanged,
		Timestamp: time.Now(),
		Module:    "manager",
		Data:      map[string]interface{}{"agent_name": "worker-1"},
	})
	require.NoError(t, err)

	var count int
	row := l.db.Conn().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM event_log")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLog_HandleEventSubscribedToBus(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(dir, 0, zerolog.Nop())
	require.NoError(t, err)
	defer l.Close()

	bus := NewBus(zerolog.Nop())
	SubscribeAll(bus, l.HandleEvent)

	bus.Emit(ManagerStarted, "manager", map[string]interface{}{})

	assert.Eventually(t, func() bool {
		var count int
		row := l.db.Conn().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM event_log")
		_ = row.Scan(&count)
		return count == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeAll_CoversEveryEventType(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	subs := SubscribeAll(bus, func(*Event) {})
	assert.Len(t, subs, len(AllEventTypes))
}
