package resources

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Direction classifies a computed trend slope.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Flat    Direction = "flat"
)

// Trend is the result of fitting a line to a window of Samples for one
// metric: slope (metric units per second) plus a qualitative Direction and
// the R^2 goodness of fit.
type Trend struct {
	Direction      Direction
	SlopePerSecond float64
	RSquared       float64
}

// metricFunc extracts the scalar value of interest from a Sample, so the
// same regression routine serves CPU, RSS, and IO trends alike.
type metricFunc func(Sample) float64

// CPUTrend fits a trend line to the CPU percent readings in samples.
func CPUTrend(samples []Sample) Trend {
	return fit(samples, func(s Sample) float64 { return s.CPUPercent })
}

// RSSTrend fits a trend line to the RSS (bytes) readings in samples.
func RSSTrend(samples []Sample) Trend {
	return fit(samples, func(s Sample) float64 { return float64(s.RSSBytes) })
}

// flatSlopeEpsilon is the per-second slope magnitude below which a trend is
// reported as Flat rather than Rising or Falling, to avoid noise in a
// near-constant signal being reported as a meaningful trend.
const flatSlopeEpsilon = 1e-9

func fit(samples []Sample, metric metricFunc) Trend {
	if len(samples) < 2 {
		return Trend{Direction: Flat}
	}

	t0 := samples[0].Timestamp
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Timestamp.Sub(t0).Seconds()
		ys[i] = metric(s)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)

	direction := Flat
	switch {
	case beta > flatSlopeEpsilon:
		direction = Rising
	case beta < -flatSlopeEpsilon:
		direction = Falling
	}

	return Trend{Direction: direction, SlopePerSecond: beta, RSquared: r2}
}

// PredictAt extrapolates a Trend forward to horizon from the last sample's
// time, returning the predicted metric value.
func (tr Trend) PredictAt(lastValue float64, horizon time.Duration) float64 {
	return lastValue + tr.SlopePerSecond*horizon.Seconds()
}
