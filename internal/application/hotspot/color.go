package hotspot

import "math"

// ColorStrategy reproduces the map rendering and flags cells whose rendered
// color reads as "red": scores are min-max normalized over the batch, mapped
// through the colormap, and a cell is a hotspot when its red channel is at
// least redMin and exceeds the green/blue average by more than contrast.
type ColorStrategy struct {
	colormap string
	redMin   int
	contrast int
}

// NewColorStrategy builds the strategy with the rendering parameters.
func NewColorStrategy(colormap string, redMin, contrast int) *ColorStrategy {
	return &ColorStrategy{colormap: colormap, redMin: redMin, contrast: contrast}
}

func (s *ColorStrategy) Name() string { return StrategyColor }

// ylOrRd holds the nine ColorBrewer anchors of the YlOrRd ramp, evenly
// spaced over [0,1].
var ylOrRd = [9][3]float64{
	{255, 255, 204},
	{255, 237, 160},
	{254, 217, 118},
	{254, 178, 76},
	{253, 141, 60},
	{252, 78, 42},
	{227, 26, 28},
	{189, 0, 38},
	{128, 0, 38},
}

// sampleYlOrRd linearly interpolates the ramp at t in [0,1] and truncates to
// integer channels, mirroring how the rendered tiles are produced.
func sampleYlOrRd(t float64) (r, g, b int) {
	if t <= 0 {
		return int(ylOrRd[0][0]), int(ylOrRd[0][1]), int(ylOrRd[0][2])
	}
	if t >= 1 {
		return int(ylOrRd[8][0]), int(ylOrRd[8][1]), int(ylOrRd[8][2])
	}
	pos := t * 8
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	r = int(ylOrRd[lo][0] + frac*(ylOrRd[lo+1][0]-ylOrRd[lo][0]))
	g = int(ylOrRd[lo][1] + frac*(ylOrRd[lo+1][1]-ylOrRd[lo][1]))
	b = int(ylOrRd[lo][2] + frac*(ylOrRd[lo+1][2]-ylOrRd[lo][2]))
	return r, g, b
}

func (s *ColorStrategy) Detect(scores []float64) (Detection, error) {
	if len(scores) == 0 {
		return emptyDetection(s.Name()), nil
	}
	if s.colormap != "YlOrRd" {
		// Unknown ramps degrade to no hotspots rather than failing the scan.
		d := emptyDetection(s.Name())
		d.Flags = make([]bool, len(scores))
		d.Tags = []string{"unknown_colormap"}
		return d, nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < minScore {
			minScore = v
		}
		if v > maxScore {
			maxScore = v
		}
	}
	scoreRange := math.Max(maxScore-minScore, 1e-6)

	flags := make([]bool, len(scores))
	for i, score := range scores {
		normalized := (score - minScore) / scoreRange
		r, g, b := sampleYlOrRd(normalized)
		avgOther := float64(g+b) / 2
		flags[i] = r >= s.redMin && float64(r) > avgOther+float64(s.contrast)
	}
	return Detection{Flags: flags, Threshold: math.NaN(), Strategy: s.Name()}, nil
}
