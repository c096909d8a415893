package hotspot

import (
	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

// Default tuning, used when the corresponding config value is zero.
const (
	defaultPercentileFraction = 0.2
	defaultStdDevFactor       = 1.5
	defaultColormap           = "YlOrRd"
	defaultColorRedMin        = 200
	defaultColorContrast      = 50
	defaultAdaptiveCVSplit    = 0.3

	// The adaptive dispatcher always runs with a tighter percentile cut than
	// the standalone strategy: flat distributions only surface the extremes.
	adaptivePercentileFraction = 0.05
)

// Detector runs the configured detection strategy over a batch of cell
// scores. It is safe for concurrent use.
type Detector struct {
	strategy Strategy
	logger   logging.Logger
}

// NewDetector builds a Detector from the hotspot configuration. Zero-valued
// tuning fields fall back to defaults; an unrecognized strategy name is an
// error.
func NewDetector(cfg config.HotspotConfig, log logging.Logger) (*Detector, error) {
	fraction := cfg.Percentile
	if fraction == 0 {
		fraction = defaultPercentileFraction
	}
	factor := cfg.StdDevFactor
	if factor == 0 {
		factor = defaultStdDevFactor
	}
	colormap := cfg.Colormap
	if colormap == "" {
		colormap = defaultColormap
	}
	redMin := cfg.ColorRedMin
	if redMin == 0 {
		redMin = defaultColorRedMin
	}
	contrast := cfg.ColorContrast
	if contrast == 0 {
		contrast = defaultColorContrast
	}
	cvSplit := cfg.AdaptiveCVSplit
	if cvSplit == 0 {
		cvSplit = defaultAdaptiveCVSplit
	}

	var strategy Strategy
	switch cfg.Strategy {
	case StrategyPercentile:
		s, err := NewPercentileStrategy(fraction)
		if err != nil {
			return nil, err
		}
		strategy = s
	case StrategyStdDev:
		s, err := NewStdDevStrategy(factor)
		if err != nil {
			return nil, err
		}
		strategy = s
	case StrategyColor:
		strategy = NewColorStrategy(colormap, redMin, contrast)
	case StrategyAdaptive:
		sd, err := NewStdDevStrategy(factor)
		if err != nil {
			return nil, err
		}
		pc, err := NewPercentileStrategy(adaptivePercentileFraction)
		if err != nil {
			return nil, err
		}
		strategy = NewAdaptiveStrategy(cvSplit, sd, pc)
	default:
		return nil, validStrategyName(cfg.Strategy)
	}

	return &Detector{strategy: strategy, logger: log}, nil
}

// Strategy returns the name of the active strategy.
func (d *Detector) Strategy() string { return d.strategy.Name() }

// Detect runs the configured strategy. Scores must not contain sentinel
// values for unscored cells; callers filter those out and map flags back by
// index. An empty batch yields an empty detection.
func (d *Detector) Detect(scores []float64) (Detection, error) {
	det, err := d.strategy.Detect(scores)
	if err != nil {
		return Detection{}, err
	}
	hot := 0
	for _, f := range det.Flags {
		if f {
			hot++
		}
	}
	d.logger.Debug("hotspot detection complete",
		logging.String("strategy", det.Strategy),
		logging.Int("cells", len(scores)),
		logging.Int("hotspots", hot),
		logging.Float64("threshold", det.Threshold),
	)
	return det, nil
}
