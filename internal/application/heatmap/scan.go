package heatmap

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/singleflight"

	"github.com/edu008/HeatQuest/internal/application/hotspot"
	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/domain/cell"
	"github.com/edu008/HeatQuest/internal/domain/grid"
	"github.com/edu008/HeatQuest/internal/infrastructure/database/redis"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

// ScanInput is a radius scan request.  SceneID optionally pins the
// temperature scene used for scoring; empty means auto-resolve.
type ScanInput struct {
	Lat      float64
	Lon      float64
	RadiusM  float64
	SceneID  string
	UseCache bool
	UseBatch bool
}

// ScanOptions tunes a single cache-or-scan pass.
type ScanOptions struct {
	SceneID  string
	UseCache bool
	UseBatch bool
}

// ScanResult is the outcome of a cache-or-scan pass over one parent cell.
type ScanResult struct {
	Parent       *cell.ParentCell
	Children     []*cell.ChildCell
	RequestBound orb.Bound
	FromCache    bool
	Duration     time.Duration
	// Progress holds the per-stage timings of the pass that produced this
	// result.
	Progress *ScanContext
}

// Service is the heatmap scan API consumed by the HTTP layer and the CLI.
type Service interface {
	// Scan validates a radius request and runs the cache-or-scan pass for the
	// parent cell containing the coordinate.
	Scan(ctx context.Context, in ScanInput) (*ScanResult, error)
	// FindOrCreateAreaCache returns the scored children of the parent cell at
	// (lat, lon), scanning and persisting them on a cache miss.
	FindOrCreateAreaCache(ctx context.Context, lat, lon float64, opts ScanOptions) (*ScanResult, error)
}

type service struct {
	parents  cell.ParentRepository
	children cell.ChildRepository
	scorer   *Scorer
	detector *hotspot.Detector
	cache    redis.Cache
	events   kafka.EventPublisher
	metrics  *prometheus.AppMetrics
	gridCfg  config.GridConfig
	heatCfg  config.HeatmapConfig
	logger   logging.Logger

	// flight collapses concurrent scans of the same parent key inside this
	// process; cross-process races are resolved by the unique constraint.
	flight singleflight.Group
}

var _ Service = (*service)(nil)

// NewService wires the scan pipeline.
func NewService(
	parents cell.ParentRepository,
	children cell.ChildRepository,
	scorer *Scorer,
	detector *hotspot.Detector,
	cache redis.Cache,
	events kafka.EventPublisher,
	metrics *prometheus.AppMetrics,
	gridCfg config.GridConfig,
	heatCfg config.HeatmapConfig,
	log logging.Logger,
) Service {
	return &service{
		parents:  parents,
		children: children,
		scorer:   scorer,
		detector: detector,
		cache:    cache,
		events:   events,
		metrics:  metrics,
		gridCfg:  gridCfg,
		heatCfg:  heatCfg,
		logger:   log.Named("heatmap"),
	}
}

func (s *service) Scan(ctx context.Context, in ScanInput) (*ScanResult, error) {
	if in.Lat < -90 || in.Lat > 90 || in.Lon < -180 || in.Lon > 180 {
		return nil, errors.Newf(errors.ErrCodeValidation, "coordinate out of range: (%v, %v)", in.Lat, in.Lon)
	}
	if in.RadiusM <= 0 || in.RadiusM > s.gridCfg.MaxRadiusM {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"radius must be in (0, %v] meters, got %v", s.gridCfg.MaxRadiusM, in.RadiusM)
	}

	res, err := s.FindOrCreateAreaCache(ctx, in.Lat, in.Lon, ScanOptions{
		SceneID:  in.SceneID,
		UseCache: in.UseCache,
		UseBatch: in.UseBatch,
	})
	if err != nil {
		return nil, err
	}

	// Results from collapsed concurrent scans share the underlying struct, so
	// the request-specific bound goes on a copy.
	out := *res
	out.RequestBound = geo.BoundFromRadius(in.Lat, in.Lon, in.RadiusM)
	return &out, nil
}

func (s *service) FindOrCreateAreaCache(ctx context.Context, lat, lon float64, opts ScanOptions) (*ScanResult, error) {
	key := cell.ParentKey(lat, lon)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.lookupOrScan(ctx, key, lat, lon, opts, newScanContext())
	})
	if err != nil {
		return nil, err
	}
	return v.(*ScanResult), nil
}

func parentCacheKey(cellKey string) string { return "parent:" + cellKey }

func (s *service) lookupOrScan(ctx context.Context, key string, lat, lon float64, opts ScanOptions, progress *ScanContext) (*ScanResult, error) {
	start := time.Now()

	if opts.UseCache {
		progress.enter(StageCacheLookup)
		var cached cell.ParentCell
		err := s.cache.Get(ctx, parentCacheKey(key), &cached)
		switch {
		case err == nil:
			s.metrics.CacheOpsTotal.WithLabelValues(prometheus.ResultHit).Inc()
			return s.cachedResult(ctx, &cached, start, progress, true)
		case !stderrors.Is(err, redis.ErrCacheMiss):
			s.logger.Warn("parent fast-path lookup failed", logging.String("cell_key", key), logging.Err(err))
		}
		s.metrics.CacheOpsTotal.WithLabelValues(prometheus.ResultMiss).Inc()

		parent, err := s.parents.GetByKey(ctx, key)
		if err == nil {
			return s.cachedResult(ctx, parent, start, progress, true)
		}
		if !errors.IsCode(err, errors.ErrCodeCellNotFound) {
			return nil, err
		}
	}

	return s.runScan(ctx, key, lat, lon, opts, start, progress)
}

// cachedResult serves a previously scanned parent: children come from
// postgres, the hit counter bump is best effort.  The served parent carries
// the post-increment count, and when refreshCache is set the fast-path entry
// is rewritten so redis never serves a stale counter back.
func (s *service) cachedResult(ctx context.Context, parent *cell.ParentCell, start time.Time, progress *ScanContext, refreshCache bool) (*ScanResult, error) {
	progress.enter(StageServe)
	children, err := s.children.ListByParent(ctx, parent.ID, false)
	if err != nil {
		return nil, err
	}
	if err := s.parents.IncrementScanCount(ctx, parent.ID); err != nil {
		s.logger.Warn("scan count increment failed",
			logging.String("cell_key", parent.CellKey), logging.Err(err))
	} else {
		parent.ScanCount++
	}
	if refreshCache {
		s.cacheParent(ctx, parent)
	}

	progress.finish()
	dur := time.Since(start)
	s.metrics.ScanRequestsTotal.WithLabelValues(prometheus.ResultHit).Inc()
	s.metrics.ScanDuration.WithLabelValues(prometheus.ResultHit).Observe(dur.Seconds())
	s.publishScan(ctx, parent, children, true, dur)

	return &ScanResult{Parent: parent, Children: children, FromCache: true, Duration: dur, Progress: progress}, nil
}

// runScan executes the full pipeline for an unscanned parent cell: tile,
// score, detect hotspots, then persist.  Hotspot detection happens before the
// child rows are inserted so every row is created with its final initial
// state.
func (s *service) runScan(ctx context.Context, key string, lat, lon float64, opts ScanOptions, start time.Time, progress *ScanContext) (*ScanResult, error) {
	progress.enter(StageGrid)
	bound := cell.ParentBound(lat, lon)
	g, err := grid.Generate(bound, s.gridCfg.CellSizeM)
	if err != nil {
		return nil, err
	}

	progress.enter(StageScoring)
	scores, err := s.score(ctx, bound, g.Cells, opts)
	if err != nil {
		return nil, err
	}

	// Only cells with a valid score participate in detection; flags map back
	// by index.
	vals := make([]float64, 0, len(scores))
	scored := make([]int, 0, len(scores))
	for i, sc := range scores {
		if sc.HeatScore != nil {
			vals = append(vals, *sc.HeatScore)
			scored = append(scored, i)
		}
	}
	progress.enter(StageDetection)
	det, err := s.detector.Detect(vals)
	if err != nil {
		return nil, err
	}

	parent := cell.NewParentCell(lat, lon)
	now := time.Now().UTC()
	children := make([]*cell.ChildCell, len(g.Cells))
	for i, gc := range g.Cells {
		sc := scores[i]
		children[i] = &cell.ChildCell{
			ID:           uuid.New(),
			ParentCellID: parent.ID,
			GridID:       gc.ID,
			LatMin:       gc.Bound.Min[1],
			LatMax:       gc.Bound.Max[1],
			LonMin:       gc.Bound.Min[0],
			LonMax:       gc.Bound.Max[0],
			CenterLat:    gc.Center[1],
			CenterLon:    gc.Center[0],
			HeatScore:    sc.HeatScore,
			TemperatureC: sc.TemperatureC,
			NDVI:         sc.NDVI,
			NDVISource:   sc.NDVISource,
			SceneID:      sc.SceneID,
			State:        cell.StateNotHotspot,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	hotspots := 0
	for k, i := range scored {
		if det.Flags[k] {
			children[i].MarkHotspot()
			hotspots++
		}
	}

	progress.enter(StagePersist)
	if err := s.parents.Create(ctx, parent); err != nil {
		if errors.IsCode(err, errors.ErrCodeCellAlreadyExists) {
			// Another process scanned this cell first; adopt its result.
			s.metrics.ScanCacheRaces.WithLabelValues().Inc()
			s.logger.Info("parent cell scan raced, adopting winner",
				logging.String("cell_key", key))
			winner, gerr := s.parents.GetByKey(ctx, key)
			if gerr != nil {
				return nil, errors.Wrap(gerr, errors.ErrCodeCacheRace,
					"failed to re-read parent cell after create conflict")
			}
			return s.cachedResult(ctx, winner, start, progress, opts.UseCache)
		}
		return nil, err
	}
	if err := s.children.CreateBatch(ctx, children); err != nil {
		return nil, err
	}
	parent.ChildCount = len(children)
	if err := s.parents.UpdateChildCount(ctx, parent.ID, len(children)); err != nil {
		s.logger.Warn("child count update failed",
			logging.String("cell_key", key), logging.Err(err))
	}
	if opts.UseCache {
		s.cacheParent(ctx, parent)
	}

	progress.finish()
	dur := time.Since(start)
	s.metrics.ScanRequestsTotal.WithLabelValues(prometheus.ResultMiss).Inc()
	s.metrics.ScanDuration.WithLabelValues(prometheus.ResultMiss).Observe(dur.Seconds())
	s.metrics.ScanCellsScored.WithLabelValues().Add(float64(len(vals)))
	s.metrics.HotspotsDetected.WithLabelValues(det.Strategy).Add(float64(hotspots))
	s.publishScan(ctx, parent, children, false, dur)

	s.logger.Info("area scan complete",
		logging.String("cell_key", key),
		logging.Int("cells", len(children)),
		logging.Int("scored", len(vals)),
		logging.Int("hotspots", hotspots),
		logging.Duration("duration", dur))

	return &ScanResult{Parent: parent, Children: children, FromCache: false, Duration: dur, Progress: progress}, nil
}

func (s *service) score(ctx context.Context, bound orb.Bound, cells []grid.Cell, opts ScanOptions) ([]CellScore, error) {
	if opts.UseBatch {
		return s.scorer.ScoreBatch(ctx, bound, cells, opts.SceneID)
	}
	scores := make([]CellScore, len(cells))
	for i, c := range cells {
		sc, err := s.scorer.ScoreCell(ctx, c, opts.SceneID)
		if err != nil {
			return nil, err
		}
		scores[i] = sc
	}
	return scores, nil
}

func (s *service) cacheParent(ctx context.Context, parent *cell.ParentCell) {
	if err := s.cache.Set(ctx, parentCacheKey(parent.CellKey), parent, s.heatCfg.CacheTTL); err != nil {
		s.logger.Warn("parent fast-path store failed",
			logging.String("cell_key", parent.CellKey), logging.Err(err))
	}
}

func (s *service) publishScan(ctx context.Context, parent *cell.ParentCell, children []*cell.ChildCell, hit bool, dur time.Duration) {
	hotspots := 0
	for _, c := range children {
		if c.IsHotspot {
			hotspots++
		}
	}
	s.events.ScanCompleted(ctx, kafka.ScanCompletedPayload{
		ParentKey:    parent.CellKey,
		ChildCount:   len(children),
		HotspotCount: hotspots,
		CacheHit:     hit,
		DurationMs:   dur.Milliseconds(),
		Lat:          parent.CenterLat,
		Lon:          parent.CenterLon,
	})
}
