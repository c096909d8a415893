package hotspot

import "github.com/edu008/HeatQuest/pkg/errors"

// StdDevStrategy flags scores above mean + factor * population standard
// deviation of the batch.
type StdDevStrategy struct {
	factor float64
}

// NewStdDevStrategy builds the strategy; factor must be positive.
func NewStdDevStrategy(factor float64) (*StdDevStrategy, error) {
	if factor <= 0 {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"stddev factor must be positive, got %v", factor)
	}
	return &StdDevStrategy{factor: factor}, nil
}

func (s *StdDevStrategy) Name() string { return StrategyStdDev }

func (s *StdDevStrategy) Detect(scores []float64) (Detection, error) {
	if len(scores) == 0 {
		return emptyDetection(s.Name()), nil
	}

	mu := mean(scores)
	threshold := mu + s.factor*populationStdDev(scores, mu)

	flags := make([]bool, len(scores))
	for i, score := range scores {
		flags[i] = score >= threshold
	}
	return Detection{Flags: flags, Threshold: threshold, Strategy: s.Name()}, nil
}
