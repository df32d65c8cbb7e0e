package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_FreshScorerAssumesHealthy(t *testing.T) {
	s := NewScorer(0.5)
	assert.Equal(t, 100.0, s.Score())
}

func TestScorer_FirstUpdateSetsScoreDirectly(t *testing.T) {
	s := NewScorer(0.5)
	got := s.Update(Sample{Status: Degraded})
	assert.Equal(t, 50.0, got)
}

func TestScorer_SmoothsSubsequentSamples(t *testing.T) {
	s := NewScorer(0.5)
	s.Update(Sample{Status: Healthy})
	got := s.Update(Sample{Status: Unreachable})
	assert.InDelta(t, 50.0, got, 0.001)
}

func TestScorer_ClampsInvalidAlpha(t *testing.T) {
	s := NewScorer(0)
	assert.Equal(t, 0.3, s.alpha)

	s2 := NewScorer(5)
	assert.Equal(t, 0.3, s2.alpha)
}

func TestScorer_InvalidResponseScoresQuarter(t *testing.T) {
	s := NewScorer(0.5)
	got := s.Update(Sample{Status: InvalidResponse})
	assert.Equal(t, 25.0, got)
}

func TestScorer_SustainedUnhealthyDrivesScoreToZero(t *testing.T) {
	s := NewScorer(0.5)
	var last float64
	for i := 0; i < 20; i++ {
		last = s.Update(Sample{Status: Unreachable})
	}
	assert.InDelta(t, 0.0, last, 0.01)
}
