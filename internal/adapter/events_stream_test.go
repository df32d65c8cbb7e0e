package adapter

import (
	"testing"

	"github.com/fleetkeeper/core/internal/events"
	"github.com/stretchr/testify/assert"
)

func TestEnqueueEventDropsOldest(t *testing.T) {
	ch := make(chan *events.Event, 2)

	e1 := &events.Event{Type: events.AgentSpawned}
	e2 := &events.Event{Type: events.AgentExited}
	e3 := &events.Event{Type: events.ManagerStarted}

	enqueueEvent(ch, e1)
	enqueueEvent(ch, e2)
	enqueueEvent(ch, e3)

	assert.Equal(t, 2, len(ch))

	first := <-ch
	second := <-ch

	assert.Equal(t, events.AgentExited, first.Type)
	assert.Equal(t, events.ManagerStarted, second.Type)
}
