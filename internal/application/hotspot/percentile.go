package hotspot

import (
	"sort"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// PercentileStrategy flags the top fraction of the batch.  With fraction p,
// the threshold is the (1-p)*100 percentile of the scores and every score at
// or above it is a hotspot.
type PercentileStrategy struct {
	fraction float64
}

// NewPercentileStrategy builds the strategy; fraction must be in (0, 1).
func NewPercentileStrategy(fraction float64) (*PercentileStrategy, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"percentile fraction must be in (0,1), got %v", fraction)
	}
	return &PercentileStrategy{fraction: fraction}, nil
}

func (s *PercentileStrategy) Name() string { return StrategyPercentile }

func (s *PercentileStrategy) Detect(scores []float64) (Detection, error) {
	if len(scores) == 0 {
		return emptyDetection(s.Name()), nil
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := percentileLinear(sorted, (1-s.fraction)*100)

	flags := make([]bool, len(scores))
	for i, score := range scores {
		flags[i] = score >= threshold
	}
	return Detection{Flags: flags, Threshold: threshold, Strategy: s.Name()}, nil
}
