package hotspot

// AdaptiveStrategy inspects the score distribution and delegates: batches
// with a high coefficient of variation (long-tailed, a few strong outliers)
// use the stddev strategy, while flatter batches use a tight percentile cut.
type AdaptiveStrategy struct {
	cvSplit    float64
	stddev     *StdDevStrategy
	percentile *PercentileStrategy
}

// NewAdaptiveStrategy wires the dispatcher with its two delegates. cvSplit is
// the coefficient-of-variation boundary between the two regimes.
func NewAdaptiveStrategy(cvSplit float64, stddev *StdDevStrategy, percentile *PercentileStrategy) *AdaptiveStrategy {
	return &AdaptiveStrategy{cvSplit: cvSplit, stddev: stddev, percentile: percentile}
}

func (s *AdaptiveStrategy) Name() string { return StrategyAdaptive }

func (s *AdaptiveStrategy) Detect(scores []float64) (Detection, error) {
	if len(scores) == 0 {
		return emptyDetection(s.Name()), nil
	}

	mu := mean(scores)
	cv := 0.0
	if mu != 0 {
		cv = populationStdDev(scores, mu) / mu
	}

	var delegate Strategy = s.percentile
	if cv > s.cvSplit {
		delegate = s.stddev
	}

	d, err := delegate.Detect(scores)
	if err != nil {
		return Detection{}, err
	}
	d.Tags = append(d.Tags, "via_"+delegate.Name())
	d.Strategy = s.Name()
	return d, nil
}
