package restart

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// TimerID identifies one scheduled restart attempt so the manager can cancel
// it without racing a newly scheduled restart for the same agent.
type TimerID string

// NewTimerID mints a fresh, unique TimerID for a scheduled restart.
func NewTimerID() TimerID {
	return TimerID(uuid.NewString())
}

// DefaultJitter draws a pseudo-random duration in [0, max) for production
// use. Tests inject a deterministic JitterFunc instead so backoff delays are
// reproducible.
func DefaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
