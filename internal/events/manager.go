package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager wraps a Bus with logging and a convenience EmitError helper, so
// callers get both the pub/sub fan-out and a durable log trail from a single
// call. Components that also want the event persisted to the event log
// subscribe a Log's HandleEvent (see internal/events/log.go, SubscribeAll)
// to the same Bus.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager bound to bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "events").Logger(),
	}
}

// Bus exposes the underlying Bus so collaborators can Subscribe directly.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes an event to the bus and records it at info level.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	m.bus.Emit(eventType, module, data)

	eventJSON, _ := json.Marshal(data)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("data", eventJSON).
		Msg("event emitted")
}

// EmitError emits an ErrorOccurred event carrying err and optional context.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}
