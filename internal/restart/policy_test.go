package restart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide_Immediate(t *testing.T) {
	d := Decide(Policy{Type: Immediate}, nil, time.Now(), nil)
	assert.Equal(t, ActionRestartNow, d.Action)
	assert.Zero(t, d.Delay)
}

func TestDecide_Delayed(t *testing.T) {
	d := Decide(Policy{Type: Delayed, InitialDelay: 5 * time.Second}, nil, time.Now(), nil)
	assert.Equal(t, ActionRestartAfterDelay, d.Action)
	assert.Equal(t, 5*time.Second, d.Delay)
}

func TestDecide_Manual(t *testing.T) {
	d := Decide(Policy{Type: Manual}, nil, time.Now(), nil)
	assert.Equal(t, ActionHoldForManual, d.Action)
}

func TestDecide_ExponentialBackoff_Growth(t *testing.T) {
	policy := Policy{
		Type:         ExponentialBackoff,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}

	now := time.Now()
	d0 := Decide(policy, nil, now, nil)
	assert.Equal(t, 1*time.Second, d0.Delay)

	d1 := Decide(policy, []time.Time{now}, now, nil)
	assert.Equal(t, 2*time.Second, d1.Delay)

	d2 := Decide(policy, []time.Time{now, now}, now, nil)
	assert.Equal(t, 4*time.Second, d2.Delay)
}

func TestDecide_ExponentialBackoff_CapsAtMaxDelay(t *testing.T) {
	policy := Policy{
		Type:         ExponentialBackoff,
		InitialDelay: 1 * time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}

	attempts := make([]time.Time, 10)
	d := Decide(policy, attempts, time.Now(), nil)
	assert.Equal(t, 5*time.Second, d.Delay)
}

func TestDecide_ExponentialBackoff_AddsJitter(t *testing.T) {
	policy := Policy{
		Type:         ExponentialBackoff,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       500 * time.Millisecond,
	}

	fixedJitter := func(max time.Duration) time.Duration {
		return 250 * time.Millisecond
	}

	d := Decide(policy, nil, time.Now(), fixedJitter)
	assert.Equal(t, 1*time.Second+250*time.Millisecond, d.Delay)
}

func TestDecide_ExhaustedWithinWindow(t *testing.T) {
	policy := Policy{
		Type:        Immediate,
		MaxRestarts: 3,
		Window:      time.Minute,
	}

	now := time.Now()
	attempts := []time.Time{
		now.Add(-40 * time.Second),
		now.Add(-20 * time.Second),
		now.Add(-5 * time.Second),
	}

	d := Decide(policy, attempts, now, nil)
	assert.Equal(t, ActionExhausted, d.Action)
}

func TestDecide_WindowResetsOldAttempts(t *testing.T) {
	policy := Policy{
		Type:        Immediate,
		MaxRestarts: 2,
		Window:      time.Minute,
	}

	now := time.Now()
	attempts := []time.Time{
		now.Add(-5 * time.Minute),
		now.Add(-4 * time.Minute),
	}

	d := Decide(policy, attempts, now, nil)
	assert.Equal(t, ActionRestartNow, d.Action)
}

func TestDecide_LifetimeCapWithZeroWindow(t *testing.T) {
	policy := Policy{
		Type:        Immediate,
		MaxRestarts: 2,
	}

	now := time.Now()
	attempts := []time.Time{
		now.Add(-10 * time.Hour),
		now.Add(-9 * time.Hour),
	}

	d := Decide(policy, attempts, now, nil)
	assert.Equal(t, ActionExhausted, d.Action)
}

func TestNewTimerID_Unique(t *testing.T) {
	a := NewTimerID()
	b := NewTimerID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, string(a))
}
