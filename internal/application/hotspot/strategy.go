// Package hotspot flags the hottest cells of a scored batch.  Detection is a
// pluggable strategy; every strategy sees the full batch at once because the
// thresholds are relative to the batch, not absolute.
package hotspot

import (
	"math"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// Strategy names accepted in configuration.
const (
	StrategyPercentile = "percentile"
	StrategyStdDev     = "stddev"
	StrategyColor      = "color"
	StrategyAdaptive   = "adaptive"
)

// Detection is the outcome of running a strategy over a batch of scores.
// Flags is parallel to the input slice.  Threshold is meaningful for the
// threshold-based strategies and NaN for the color strategy.
type Detection struct {
	Flags     []bool   `json:"flags"`
	Threshold float64  `json:"threshold"`
	Strategy  string   `json:"strategy"`
	Tags      []string `json:"tags,omitempty"`
}

// Strategy flags hotspots in a batch of heat scores.  An empty batch yields
// an empty detection, never an error.
type Strategy interface {
	Name() string
	Detect(scores []float64) (Detection, error)
}

func emptyDetection(name string) Detection {
	return Detection{Flags: []bool{}, Threshold: math.NaN(), Strategy: name}
}

// mean and populationStdDev implement the plain population statistics the
// thresholds are defined over (divisor n, not n-1).
func mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func populationStdDev(scores []float64, mu float64) float64 {
	var sum float64
	for _, s := range scores {
		d := s - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(scores)))
}

// percentileLinear computes the q-th percentile (0..100) with linear
// interpolation between closest ranks. sorted must be non-empty and ascending.
func percentileLinear(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

var (
	_ Strategy = (*PercentileStrategy)(nil)
	_ Strategy = (*StdDevStrategy)(nil)
	_ Strategy = (*ColorStrategy)(nil)
	_ Strategy = (*AdaptiveStrategy)(nil)
)

func validStrategyName(name string) error {
	switch name {
	case StrategyPercentile, StrategyStdDev, StrategyColor, StrategyAdaptive:
		return nil
	}
	return errors.Newf(errors.ErrCodeDetectorUnknown, "unknown hotspot strategy %q", name)
}
