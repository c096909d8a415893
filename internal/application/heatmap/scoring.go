// Package heatmap implements the area scan pipeline: tiling a parent cell
// into a grid, scoring every tile from satellite rasters, flagging hotspots,
// and persisting the result through the two-tier cache.
package heatmap

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/edu008/HeatQuest/internal/domain/grid"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/raster"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// NDVI provenance recorded on every scored cell.
const (
	NDVISourcePrimary   = "primary"
	NDVISourceEstimated = "estimated_urban"
)

// RasterSource locates a decoded band covering a bounding box.  A non-empty
// sceneID pins the lookup to that scene instead of resolving one.  The minio
// scene store is the production implementation; tests use in-memory fakes.
type RasterSource interface {
	FindBand(ctx context.Context, sceneID, band string, bound orb.Bound) (*raster.Raster, raster.BandMeta, error)
}

// CellScore holds the zonal metrics of a single grid cell.  Pointer fields
// are nil when the raster had no valid pixels inside the cell; a nil heat
// score is distinct from a zero one and the cell is skipped by the hotspot
// detector.
type CellScore struct {
	TemperatureC *float64
	NDVI         *float64
	HeatScore    *float64
	NDVISource   string
	SceneID      string
}

// Scorer computes heat scores for grid cells from a temperature band and an
// optional vegetation band.
type Scorer struct {
	source        RasterSource
	ndviWeight    float64
	estimatedNDVI float64
	logger        logging.Logger
}

// NewScorer builds a Scorer.  ndviWeight is the vegetation discount in the
// heat formula; estimatedNDVI is the flat fallback used when no vegetation
// band covers the area.
func NewScorer(source RasterSource, ndviWeight, estimatedNDVI float64, log logging.Logger) *Scorer {
	return &Scorer{
		source:        source,
		ndviWeight:    ndviWeight,
		estimatedNDVI: estimatedNDVI,
		logger:        log.Named("scorer"),
	}
}

// ScoreBatch scores every cell against a single temperature scene and a
// single vegetation scene looked up once for the whole bound.  A non-empty
// sceneID pins the temperature scene; vegetation always auto-resolves.
// Missing vegetation coverage degrades to the estimated flat value; missing
// temperature coverage fails the batch, since there is nothing to score.
func (s *Scorer) ScoreBatch(ctx context.Context, bound orb.Bound, cells []grid.Cell, sceneID string) ([]CellScore, error) {
	temp, tempMeta, err := s.source.FindBand(ctx, sceneID, raster.BandTemperature, bound)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScanDataMissing, "no temperature coverage for scan area")
	}

	ndvi, _, err := s.source.FindBand(ctx, "", raster.BandNDVI, bound)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeSceneNotFound) && !errors.IsCode(err, errors.ErrCodeRasterNoCoverage) {
			return nil, errors.Wrap(err, errors.ErrCodeRasterUnavailable, "vegetation band lookup failed")
		}
		s.logger.Warn("no vegetation coverage, using estimated flat NDVI",
			logging.String("scene_id", tempMeta.SceneID),
			logging.Float64("estimated_ndvi", s.estimatedNDVI))
		ndvi = nil
	}

	scores := make([]CellScore, len(cells))
	for i, c := range cells {
		scores[i] = s.scoreOne(temp, ndvi, tempMeta.SceneID, c.Bound)
	}
	return scores, nil
}

// ScoreCell scores a single cell with its own band lookups; sceneID pins the
// temperature scene as in ScoreBatch.  Kept alongside the batch path for
// comparison and fallback; both must agree on identical inputs.
func (s *Scorer) ScoreCell(ctx context.Context, c grid.Cell, sceneID string) (CellScore, error) {
	temp, tempMeta, err := s.source.FindBand(ctx, sceneID, raster.BandTemperature, c.Bound)
	if err != nil {
		return CellScore{}, errors.Wrap(err, errors.ErrCodeScanDataMissing, "no temperature coverage for cell")
	}

	ndvi, _, err := s.source.FindBand(ctx, "", raster.BandNDVI, c.Bound)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeSceneNotFound) && !errors.IsCode(err, errors.ErrCodeRasterNoCoverage) {
			return CellScore{}, errors.Wrap(err, errors.ErrCodeRasterUnavailable, "vegetation band lookup failed")
		}
		ndvi = nil
	}

	return s.scoreOne(temp, ndvi, tempMeta.SceneID, c.Bound), nil
}

// scoreOne computes the zonal metrics of one cell bound.  The temperature
// band stores Landsat digital numbers; the DN→Celsius conversion is affine,
// so converting the zonal mean equals the mean of converted pixels.
func (s *Scorer) scoreOne(temp, ndvi *raster.Raster, sceneID string, bound orb.Bound) CellScore {
	meanDN, n := temp.MeanInBound(bound)
	if n == 0 {
		return CellScore{SceneID: sceneID}
	}
	tempC := raster.DNToCelsius(meanDN)

	ndviVal := s.estimatedNDVI
	ndviSource := NDVISourceEstimated
	if ndvi != nil {
		if v, vn := ndvi.MeanInBound(bound); vn > 0 {
			ndviVal = v
			ndviSource = NDVISourcePrimary
		}
	}

	heat := tempC - s.ndviWeight*ndviVal
	return CellScore{
		TemperatureC: &tempC,
		NDVI:         &ndviVal,
		HeatScore:    &heat,
		NDVISource:   ndviSource,
		SceneID:      sceneID,
	}
}
