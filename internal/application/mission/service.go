// Package mission turns completed hotspot analyses into player missions and
// manages their lifecycle.  Generation is guarded twice against duplicates:
// the analysis row's mission_generated flag is the primary filter and the
// missions table's (cell_analysis_id, user_id) uniqueness is the backup; a
// mission is only ever created when both layers agree the pair is new.
package mission

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/internal/config"
	domainAnalysis "github.com/edu008/HeatQuest/internal/domain/analysis"
	"github.com/edu008/HeatQuest/internal/domain/cell"
	domainMission "github.com/edu008/HeatQuest/internal/domain/mission"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/pkg/errors"
	"github.com/edu008/HeatQuest/pkg/geo"
)

const (
	defaultMinHeatScore     = 11.0
	defaultMaxPerGeneration = 5

	// candidatePoolSize bounds how many unmissioned analyses one generation
	// run considers before ranking.
	candidatePoolSize = 50
)

// GenerateInput requests mission generation for a user.
type GenerateInput struct {
	UserID  string
	UserLat float64
	UserLon float64
	// MaxMissions optionally lowers the per-run cap; zero means the
	// configured default.
	MaxMissions int
}

// GenerateResult reports one generation run.
type GenerateResult struct {
	// Candidates is how many unmissioned analyses were considered.
	Candidates int
	// Created holds the new missions, closest first.
	Created []*domainMission.Mission
	// Skipped counts analyses dropped by the heat threshold or either dedup
	// guard.
	Skipped int
}

// Service is the mission API.
type Service interface {
	// Generate builds missions from the user's unmissioned analyses, closest
	// first, at most the configured number per run.
	Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domainMission.Mission, error)
	List(ctx context.Context, userID string, status *domainMission.Status) ([]*domainMission.Mission, error)
	Counts(ctx context.Context, userID string) (map[domainMission.Status]int, error)
	// Activate moves a pending mission to active.
	Activate(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
	// Complete finishes a mission and awards its points.  A pending mission
	// is activated implicitly.
	Complete(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
	// Cancel abandons a pending or active mission.
	Cancel(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
}

type service struct {
	missions domainMission.Repository
	analyses domainAnalysis.Repository
	children cell.ChildRepository
	events   kafka.EventPublisher
	metrics  *prometheus.AppMetrics
	cfg      config.MissionConfig
	logger   logging.Logger
}

var _ Service = (*service)(nil)

// NewService wires the mission service.
func NewService(
	missions domainMission.Repository,
	analyses domainAnalysis.Repository,
	children cell.ChildRepository,
	events kafka.EventPublisher,
	metrics *prometheus.AppMetrics,
	cfg config.MissionConfig,
	log logging.Logger,
) Service {
	return &service{
		missions: missions,
		analyses: analyses,
		children: children,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		logger:   log.Named("mission"),
	}
}

// generationCandidate pairs an analysis with its cell metrics and user
// distance.
type generationCandidate struct {
	analysis  *domainAnalysis.CellAnalysis
	child     *cell.ChildCell
	heatScore float64
	distanceM float64
}

func (s *service) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if in.UserID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "user id is required")
	}

	minHeat := s.cfg.MinHeatScore
	if minHeat == 0 {
		minHeat = defaultMinHeatScore
	}
	maxMissions := s.cfg.MaxPerGeneration
	if maxMissions <= 0 {
		maxMissions = defaultMaxPerGeneration
	}
	if in.MaxMissions > 0 && in.MaxMissions < maxMissions {
		maxMissions = in.MaxMissions
	}

	// Primary guard: only analyses without the mission_generated flag.
	unmissioned, err := s.analyses.ListUnmissioned(ctx, in.UserID, candidatePoolSize)
	if err != nil {
		return nil, err
	}
	res := &GenerateResult{Candidates: len(unmissioned)}
	if len(unmissioned) == 0 {
		return res, nil
	}

	candidates := make([]generationCandidate, 0, len(unmissioned))
	for _, a := range unmissioned {
		child, err := s.children.GetByID(ctx, a.ChildCellID)
		if err != nil {
			s.logger.Warn("analysis references missing child cell",
				logging.String("analysis_id", a.ID.String()), logging.Err(err))
			res.Skipped++
			continue
		}
		if child.HeatScore == nil || *child.HeatScore < minHeat {
			res.Skipped++
			continue
		}

		// Backup guard: the missions table is checked even though the flag
		// said no mission exists.  Divergence means the flag write was lost;
		// repair it and skip.
		exists, err := s.missions.ExistsForAnalysis(ctx, a.ID, in.UserID)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Warn("analysis flag disagrees with missions table, repairing",
				logging.String("analysis_id", a.ID.String()))
			if merr := s.analyses.MarkMissionGenerated(ctx, a.ID); merr != nil {
				s.logger.Warn("failed to repair mission_generated flag",
					logging.String("analysis_id", a.ID.String()), logging.Err(merr))
			}
			res.Skipped++
			continue
		}

		candidates = append(candidates, generationCandidate{
			analysis:  a,
			child:     child,
			heatScore: *child.HeatScore,
			distanceM: geo.Haversine(in.UserLat, in.UserLon, child.CenterLat, child.CenterLon),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distanceM < candidates[j].distanceM
	})
	if len(candidates) > maxMissions {
		res.Skipped += len(candidates) - maxMissions
		candidates = candidates[:maxMissions]
	}

	for _, c := range candidates {
		m, err := s.createMission(ctx, c, in.UserID)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeMissionAlreadyExists) {
				// Lost a race between the guard check and the insert.
				res.Skipped++
				continue
			}
			return nil, err
		}
		res.Created = append(res.Created, m)
	}

	s.logger.Info("mission generation complete",
		logging.String("user_id", in.UserID),
		logging.Int("candidates", res.Candidates),
		logging.Int("created", len(res.Created)),
		logging.Int("skipped", res.Skipped))
	return res, nil
}

func (s *service) createMission(ctx context.Context, c generationCandidate, userID string) (*domainMission.Mission, error) {
	m := domainMission.New(c.analysis.ID, c.analysis.ChildCellID, userID)
	m.Title = buildTitle(c.heatScore, c.analysis.LocationType, c.analysis.Summary)
	m.Description = buildDescription(c.analysis.Summary, c.heatScore, c.child.TemperatureC)
	m.Reasons = buildReasons(c.analysis.MainCause, c.analysis.Summary, c.child.TemperatureC, c.child.NDVI)
	m.RequiredActions = buildActions(c.analysis.SuggestedActions)
	m.LocationType = c.analysis.LocationType
	m.HeatScore = c.heatScore
	m.Lat = c.child.CenterLat
	m.Lon = c.child.CenterLon
	m.DistanceM = c.distanceM
	if s.cfg.CompletionPoints > 0 {
		m.Points = s.cfg.CompletionPoints
	}

	if err := s.missions.Create(ctx, m); err != nil {
		return nil, err
	}
	// The flag write follows the insert; a crash in between is healed by the
	// backup guard on the next run.
	if err := s.analyses.MarkMissionGenerated(ctx, c.analysis.ID); err != nil {
		s.logger.Warn("failed to set mission_generated flag",
			logging.String("analysis_id", c.analysis.ID.String()), logging.Err(err))
	}

	s.metrics.MissionsCreated.WithLabelValues().Inc()
	s.events.MissionCreated(ctx, kafka.MissionCreatedPayload{
		MissionID:  m.ID.String(),
		AnalysisID: c.analysis.ID.String(),
		UserID:     userID,
		HeatScore:  c.heatScore,
	})
	return m, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*domainMission.Mission, error) {
	return s.missions.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, userID string, status *domainMission.Status) ([]*domainMission.Mission, error) {
	if status != nil && !status.Valid() {
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown mission status %q", *status)
	}
	return s.missions.ListByUser(ctx, userID, status)
}

func (s *service) Counts(ctx context.Context, userID string) (map[domainMission.Status]int, error) {
	return s.missions.CountByStatus(ctx, userID)
}

func (s *service) Activate(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error) {
	return s.transition(ctx, id, userID, domainMission.StatusActive)
}

func (s *service) Complete(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error) {
	m, err := s.ownedMission(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if m.Status == domainMission.StatusPending {
		if err := m.Transition(domainMission.StatusActive); err != nil {
			return nil, err
		}
	}
	if err := m.Transition(domainMission.StatusCompleted); err != nil {
		return nil, err
	}
	if err := s.missions.Update(ctx, m); err != nil {
		return nil, err
	}
	s.metrics.MissionsCompleted.WithLabelValues().Inc()
	s.logger.Info("mission completed",
		logging.String("mission_id", m.ID.String()),
		logging.String("user_id", userID),
		logging.Int("points", m.Points))
	return m, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error) {
	return s.transition(ctx, id, userID, domainMission.StatusCancelled)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, userID string, next domainMission.Status) (*domainMission.Mission, error) {
	m, err := s.ownedMission(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := m.Transition(next); err != nil {
		return nil, err
	}
	if err := s.missions.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ownedMission loads a mission and hides other users' missions behind
// not-found.
func (s *service) ownedMission(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error) {
	m, err := s.missions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, errors.New(errors.ErrCodeMissionNotFound, "mission not found")
	}
	return m, nil
}
