// Package analysis implements the dedup-gated hotspot analysis pipeline:
// pending hotspot cells are cross-checked against the analysis table, ranked
// by distance from the requesting user, capped per request and per user-day,
// and finally sent to the external vision analyzer.  Every analyzed cell
// leaves the pending state exactly once, whether the analyzer succeeded or
// not.
package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/internal/config"
	domainAnalysis "github.com/edu008/HeatQuest/internal/domain/analysis"
	"github.com/edu008/HeatQuest/internal/domain/cell"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/internal/infrastructure/vision"
	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

const defaultMaxPerRequest = 2

// Imagery fetches a satellite image of a coordinate.  The vision provider
// chain is the production implementation.
type Imagery interface {
	Fetch(ctx context.Context, lat, lon float64, zoom, sizePx int) ([]byte, string, error)
}

// Analyzer explains a hotspot cell from its image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, cellCtx vision.CellContext) (*vision.Result, error)
}

// Quota is the per-user daily allowance.
type Quota interface {
	Consume(ctx context.Context, userID string, n int) (int, error)
	Remaining(ctx context.Context, userID string) (int, error)
}

// RunInput requests analysis of pending hotspots in one parent cell.
type RunInput struct {
	ParentCellID uuid.UUID
	UserID       string
	// UserLat/UserLon rank candidates: the closest pending hotspots are
	// analyzed first.
	UserLat float64
	UserLon float64
	// MaxCells optionally lowers the per-request cap; zero means the
	// configured default.
	MaxCells int
}

// RunResult reports what the gate did with one request.
type RunResult struct {
	// Pending is how many cells were awaiting analysis before the run.
	Pending int
	// Dropped counts cells whose pending flag disagreed with the analysis
	// table; they are skipped and their flag repaired.
	Dropped int
	// Analyzed holds the persisted analyses, closest first.
	Analyzed []*domainAnalysis.CellAnalysis
	// Failed counts analyzer failures; those cells are terminal and will not
	// be retried.
	Failed int
	// LimitReached is set when the daily allowance ran out before the
	// per-request cap.
	LimitReached bool
	// Remaining is the user's allowance after the run.
	Remaining int
}

// Service is the analysis gate API.
type Service interface {
	// Run analyzes the closest pending hotspots of a parent cell for a user,
	// subject to the per-request and daily caps.  A cap hit is reported in
	// the result, not as an error.
	Run(ctx context.Context, in RunInput) (*RunResult, error)
	// GetByChildCell returns the stored analysis of a cell.
	GetByChildCell(ctx context.Context, childCellID uuid.UUID) (*domainAnalysis.CellAnalysis, error)
}

type service struct {
	children cell.ChildRepository
	analyses domainAnalysis.Repository
	imagery  Imagery
	analyzer Analyzer
	quota    Quota
	events   kafka.EventPublisher
	metrics  *prometheus.AppMetrics
	cfg      config.AnalysisConfig
	logger   logging.Logger
}

var _ Service = (*service)(nil)

// NewService wires the gate.
func NewService(
	children cell.ChildRepository,
	analyses domainAnalysis.Repository,
	imagery Imagery,
	analyzer Analyzer,
	quota Quota,
	events kafka.EventPublisher,
	metrics *prometheus.AppMetrics,
	cfg config.AnalysisConfig,
	log logging.Logger,
) Service {
	return &service{
		children: children,
		analyses: analyses,
		imagery:  imagery,
		analyzer: analyzer,
		quota:    quota,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		logger:   log.Named("analysis"),
	}
}

// candidate is a pending cell with its distance from the requesting user.
type candidate struct {
	cell      *cell.ChildCell
	distanceM float64
}

func (s *service) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if in.UserID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "user id is required")
	}

	pending, err := s.children.ListByParent(ctx, in.ParentCellID, true)
	if err != nil {
		return nil, err
	}
	res := &RunResult{Pending: len(pending)}
	if len(pending) == 0 {
		res.Remaining, _ = s.quota.Remaining(ctx, in.UserID)
		return res, nil
	}

	candidates, dropped := s.crossCheck(ctx, pending)
	res.Dropped = dropped

	// Closest pending hotspots first.
	for i := range candidates {
		candidates[i].distanceM = geo.Haversine(
			in.UserLat, in.UserLon,
			candidates[i].cell.CenterLat, candidates[i].cell.CenterLon)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distanceM < candidates[j].distanceM
	})

	limit := s.requestCap(in.MaxCells)
	if len(candidates) < limit {
		limit = len(candidates)
	}
	if limit == 0 {
		res.Remaining, _ = s.quota.Remaining(ctx, in.UserID)
		return res, nil
	}

	granted, err := s.quota.Consume(ctx, in.UserID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "daily quota check failed")
	}
	if granted < limit {
		res.LimitReached = true
		s.metrics.AnalysisTotal.WithLabelValues(prometheus.OutcomeLimited).Add(float64(limit - granted))
	}

	for _, c := range candidates[:granted] {
		rec, aerr := s.analyzeCell(ctx, c, in.UserID)
		if aerr != nil {
			res.Failed++
			continue
		}
		res.Analyzed = append(res.Analyzed, rec)
	}

	res.Remaining, _ = s.quota.Remaining(ctx, in.UserID)
	return res, nil
}

func (s *service) GetByChildCell(ctx context.Context, childCellID uuid.UUID) (*domainAnalysis.CellAnalysis, error) {
	return s.analyses.GetByChildCellID(ctx, childCellID)
}

func (s *service) requestCap(override int) int {
	max := s.cfg.MaxPerRequest
	if max <= 0 {
		max = defaultMaxPerRequest
	}
	if override > 0 && override < max {
		return override
	}
	return max
}

// crossCheck drops cells whose pending flag disagrees with the analysis
// table.  The flag is the fast signal; the table row is authoritative.
// Divergent cells are logged, counted, and their flag repaired.
func (s *service) crossCheck(ctx context.Context, pending []*cell.ChildCell) ([]candidate, int) {
	ids := make([]uuid.UUID, len(pending))
	for i, c := range pending {
		ids[i] = c.ID
	}
	existing, err := s.analyses.ExistsForCells(ctx, ids)
	if err != nil {
		// Without the cross-check every pending cell is a candidate; the
		// unique constraint on child_cell_id still prevents duplicates.
		s.logger.Warn("analysis cross-check failed, proceeding on flags alone", logging.Err(err))
		existing = nil
	}

	candidates := make([]candidate, 0, len(pending))
	dropped := 0
	for _, c := range pending {
		if existing[c.ID] {
			dropped++
			s.metrics.AnalysisPendingSkew.WithLabelValues().Inc()
			s.logger.Warn("pending cell already has an analysis row, dropping",
				logging.String("child_cell_id", c.ID.String()))
			if uerr := s.children.UpdateState(ctx, c.ID, cell.StateAnalysisComplete); uerr != nil {
				s.logger.Warn("failed to repair pending flag",
					logging.String("child_cell_id", c.ID.String()), logging.Err(uerr))
			}
			continue
		}
		candidates = append(candidates, candidate{cell: c})
	}
	return candidates, dropped
}

// analyzeCell runs the external analyzer for one cell and persists the
// outcome.  Failures are terminal: the pending flag flips regardless, so the
// cell is never retried.
func (s *service) analyzeCell(ctx context.Context, c candidate, userID string) (*domainAnalysis.CellAnalysis, error) {
	start := time.Now()
	result, err := s.callAnalyzer(ctx, c.cell)

	// One-way transition, taken on success and failure alike.
	if uerr := s.children.UpdateState(ctx, c.cell.ID, cell.StateAnalysisComplete); uerr != nil {
		s.logger.Error("failed to complete cell analysis state",
			logging.String("child_cell_id", c.cell.ID.String()), logging.Err(uerr))
	}

	if err != nil {
		s.metrics.AnalysisTotal.WithLabelValues(prometheus.OutcomeFailure).Inc()
		s.logger.Warn("cell analysis failed",
			logging.String("child_cell_id", c.cell.ID.String()),
			logging.Float64("distance_m", c.distanceM),
			logging.Err(err))
		s.events.CellAnalyzed(ctx, kafka.CellAnalyzedPayload{
			ChildCellID: c.cell.ID.String(),
			UserID:      userID,
			Success:     false,
		})
		return nil, err
	}

	rec := domainAnalysis.New(c.cell.ID, userID)
	rec.Summary = result.Summary
	rec.MainCause = result.MainCause
	rec.LocationType = result.LocationType
	rec.SuggestedActions = suggestedActions(result.SuggestedActions)
	rec.Confidence = result.Confidence
	rec.Provider = result.Provider

	if err := s.analyses.Create(ctx, rec); err != nil {
		if errors.IsCode(err, errors.ErrCodeConflict) {
			// Lost a race with another request for the same cell; the winner's
			// row stands.
			s.metrics.AnalysisTotal.WithLabelValues(prometheus.OutcomeDropped).Inc()
			return s.analyses.GetByChildCellID(ctx, c.cell.ID)
		}
		s.metrics.AnalysisTotal.WithLabelValues(prometheus.OutcomeFailure).Inc()
		return nil, err
	}

	s.metrics.AnalysisTotal.WithLabelValues(prometheus.OutcomeSuccess).Inc()
	s.metrics.AnalysisDuration.WithLabelValues(rec.Provider).Observe(time.Since(start).Seconds())
	s.events.CellAnalyzed(ctx, kafka.CellAnalyzedPayload{
		ChildCellID: c.cell.ID.String(),
		AnalysisID:  rec.ID.String(),
		UserID:      userID,
		Provider:    rec.Provider,
		Success:     true,
	})
	return rec, nil
}

// suggestedActions converts the analyzer's action list into the persisted
// shape.
func suggestedActions(actions []vision.Action) []domainAnalysis.SuggestedAction {
	if len(actions) == 0 {
		return nil
	}
	out := make([]domainAnalysis.SuggestedAction, len(actions))
	for i, a := range actions {
		out[i] = domainAnalysis.SuggestedAction{
			Priority:    a.Priority,
			Action:      a.Action,
			Description: a.Description,
		}
	}
	return out
}

// callAnalyzer fetches the cell's image and runs the analyzer chain under
// the configured timeout.
func (s *service) callAnalyzer(ctx context.Context, c *cell.ChildCell) (*vision.Result, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	image, _, err := s.imagery.Fetch(ctx, c.CenterLat, c.CenterLon, s.cfg.ImageZoom, s.cfg.ImageSizePixels)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageryUnavailable, "failed to fetch cell imagery")
	}

	cellCtx := vision.CellContext{Lat: c.CenterLat, Lon: c.CenterLon}
	if c.HeatScore != nil {
		cellCtx.HeatScore = *c.HeatScore
	}
	if c.TemperatureC != nil {
		cellCtx.TemperatureC = *c.TemperatureC
	}
	if c.NDVI != nil {
		cellCtx.NDVI = *c.NDVI
	}

	result, err := s.analyzer.Analyze(ctx, image, cellCtx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "analyzer chain failed")
	}
	return result, nil
}
