package adapter

import (
	"net/http"

	"github.com/fleetkeeper/core/internal/events"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// eventStreamBuffer bounds how many unconsumed events a single WebSocket
// client is allowed to queue before the oldest is dropped to make room for
// the newest, so one slow client can never build up unbounded memory or
// block event delivery to everyone else.
const eventStreamBuffer = 64

// handleEventStream upgrades the request to a WebSocket and streams every
// event emitted on the bus, encoded as JSON, until the client disconnects or
// the request context is canceled.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to accept websocket connection")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	eventCh := make(chan *events.Event, eventStreamBuffer)

	subs := events.SubscribeAll(s.bus, func(e *events.Event) {
		enqueueEvent(eventCh, e)
	})
	defer func() {
		for _, sub := range subs {
			s.bus.Unsubscribe(sub)
		}
	}()

	s.log.Debug().Msg("event stream client connected")

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "context canceled")
			return
		case ev := <-eventCh:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				s.log.Debug().Err(err).Msg("event stream write failed, disconnecting client")
				return
			}
		}
	}
}

// enqueueEvent pushes ev onto ch, dropping the oldest queued event first if
// ch is full, so a burst never blocks the emitting goroutine.
func enqueueEvent(ch chan *events.Event, ev *events.Event) {
	select {
	case ch <- ev:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- ev:
	default:
	}
}
