package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/config"
	domainAnalysis "github.com/edu008/HeatQuest/internal/domain/analysis"
	"github.com/edu008/HeatQuest/internal/domain/cell"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/internal/infrastructure/vision"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeChildRepo struct {
	mu    sync.Mutex
	cells map[uuid.UUID]*cell.ChildCell
}

func newFakeChildRepo(cells ...*cell.ChildCell) *fakeChildRepo {
	r := &fakeChildRepo{cells: map[uuid.UUID]*cell.ChildCell{}}
	for _, c := range cells {
		r.cells[c.ID] = c
	}
	return r
}

func (r *fakeChildRepo) CreateBatch(_ context.Context, cells []*cell.ChildCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cells {
		r.cells[c.ID] = c
	}
	return nil
}

func (r *fakeChildRepo) ListByParent(_ context.Context, parentID uuid.UUID, onlyPending bool) ([]*cell.ChildCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*cell.ChildCell
	for _, c := range r.cells {
		if c.ParentCellID != parentID {
			continue
		}
		if onlyPending && c.State != cell.StatePendingAnalysis {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeChildRepo) GetByID(_ context.Context, id uuid.UUID) (*cell.ChildCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeCellNotFound, "child cell not found")
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChildRepo) UpdateState(_ context.Context, id uuid.UUID, state cell.AnalysisState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[id]
	if !ok {
		return errors.New(errors.ErrCodeCellNotFound, "child cell not found")
	}
	c.State = state
	return nil
}

func (r *fakeChildRepo) state(id uuid.UUID) cell.AnalysisState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cells[id].State
}

type fakeAnalysisRepo struct {
	mu     sync.Mutex
	byCell map[uuid.UUID]*domainAnalysis.CellAnalysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{byCell: map[uuid.UUID]*domainAnalysis.CellAnalysis{}}
}

func (r *fakeAnalysisRepo) Create(_ context.Context, a *domainAnalysis.CellAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCell[a.ChildCellID]; ok {
		return errors.New(errors.ErrCodeConflict, "cell already analyzed")
	}
	cp := *a
	r.byCell[a.ChildCellID] = &cp
	return nil
}

func (r *fakeAnalysisRepo) GetByID(_ context.Context, id uuid.UUID) (*domainAnalysis.CellAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byCell {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.New(errors.ErrCodeAnalysisNotFound, "cell analysis not found")
}

func (r *fakeAnalysisRepo) GetByChildCellID(_ context.Context, childCellID uuid.UUID) (*domainAnalysis.CellAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byCell[childCellID]
	if !ok {
		return nil, errors.New(errors.ErrCodeAnalysisNotFound, "cell analysis not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAnalysisRepo) ExistsForCells(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if _, ok := r.byCell[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *fakeAnalysisRepo) ListUnmissioned(_ context.Context, userID string, limit int) ([]*domainAnalysis.CellAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domainAnalysis.CellAnalysis
	for _, a := range r.byCell {
		if a.UserID == userID && !a.MissionGenerated {
			cp := *a
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeAnalysisRepo) MarkMissionGenerated(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byCell {
		if a.ID == id {
			a.MissionGenerated = true
			return nil
		}
	}
	return errors.New(errors.ErrCodeAnalysisNotFound, "cell analysis not found")
}

type stubImagery struct {
	err   error
	calls int
}

func (s *stubImagery) Fetch(context.Context, float64, float64, int, int) ([]byte, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte{0x89, 'P', 'N', 'G'}, "mapbox", nil
}

type stubAnalyzer struct {
	err    error
	calls  int
	lastIn vision.CellContext
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ []byte, cellCtx vision.CellContext) (*vision.Result, error) {
	s.calls++
	s.lastIn = cellCtx
	if s.err != nil {
		return nil, s.err
	}
	return &vision.Result{
		Summary:          "dark asphalt parking surface",
		MainCause:        "impervious pavement",
		LocationType:     "parking lot",
		SuggestedActions: []vision.Action{{Priority: "high", Action: "Plant shade trees", Description: "Tree cover along the parking rows"}},
		Confidence:       0.8,
		Provider:         "gemini",
	}, nil
}

type fakeQuota struct {
	mu    sync.Mutex
	limit int
	used  int
}

func (q *fakeQuota) Consume(_ context.Context, _ string, n int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	granted := n
	if q.used+n > q.limit {
		granted = q.limit - q.used
		if granted < 0 {
			granted = 0
		}
	}
	q.used += granted
	return granted, nil
}

func (q *fakeQuota) Remaining(context.Context, string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.used, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type gateHarness struct {
	svc      Service
	children *fakeChildRepo
	analyses *fakeAnalysisRepo
	imagery  *stubImagery
	analyzer *stubAnalyzer
	quota    *fakeQuota
}

func newGateHarness(t *testing.T, dailyLimit int, cells ...*cell.ChildCell) *gateHarness {
	t.Helper()
	log := logging.NewNopLogger()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, log)
	require.NoError(t, err)

	h := &gateHarness{
		children: newFakeChildRepo(cells...),
		analyses: newFakeAnalysisRepo(),
		imagery:  &stubImagery{},
		analyzer: &stubAnalyzer{},
		quota:    &fakeQuota{limit: dailyLimit},
	}
	h.svc = NewService(
		h.children,
		h.analyses,
		h.imagery,
		h.analyzer,
		h.quota,
		kafka.NewNopPublisher(),
		prometheus.NewAppMetrics(collector),
		config.AnalysisConfig{MaxPerRequest: 2, MaxPerUserDaily: dailyLimit},
		log,
	)
	return h
}

func ptr(v float64) *float64 { return &v }

// pendingCell builds a pending hotspot child at the given center.
func pendingCell(parentID uuid.UUID, lat, lon float64) *cell.ChildCell {
	return &cell.ChildCell{
		ID:           uuid.New(),
		ParentCellID: parentID,
		GridID:       "cell_0_0",
		CenterLat:    lat,
		CenterLon:    lon,
		HeatScore:    ptr(15.0),
		TemperatureC: ptr(31.0),
		NDVI:         ptr(0.2),
		IsHotspot:    true,
		State:        cell.StatePendingAnalysis,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRunAnalyzesClosestCellsFirst(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	near := pendingCell(parentID, 52.5200, 13.4000)
	mid := pendingCell(parentID, 52.5230, 13.4000)
	far := pendingCell(parentID, 52.5290, 13.4000)
	h := newGateHarness(t, 10, near, mid, far)

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID,
		UserID:       "user-1",
		UserLat:      52.5200,
		UserLon:      13.4000,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Pending)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Analyzed, 2)
	assert.False(t, res.LimitReached)

	// The two closest cells were analyzed, the farthest stays pending.
	assert.Equal(t, near.ID, res.Analyzed[0].ChildCellID)
	assert.Equal(t, mid.ID, res.Analyzed[1].ChildCellID)
	assert.Equal(t, cell.StateAnalysisComplete, h.children.state(near.ID))
	assert.Equal(t, cell.StateAnalysisComplete, h.children.state(mid.ID))
	assert.Equal(t, cell.StatePendingAnalysis, h.children.state(far.ID))

	// Analyzer saw the cell metrics.
	assert.Equal(t, 2, h.analyzer.calls)
	assert.InDelta(t, 15.0, h.analyzer.lastIn.HeatScore, 1e-9)

	stored, err := h.analyses.GetByChildCellID(context.Background(), near.ID)
	require.NoError(t, err)
	assert.Equal(t, "impervious pavement", stored.MainCause)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "gemini", stored.Provider)
}

func TestRunDropsAndRepairsSkewedCells(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	stale := pendingCell(parentID, 52.5201, 13.4001)
	fresh := pendingCell(parentID, 52.5205, 13.4005)
	h := newGateHarness(t, 10, stale, fresh)

	// stale already has an analysis row despite its pending flag.
	require.NoError(t, h.analyses.Create(context.Background(), domainAnalysis.New(stale.ID, "someone-else")))

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Analyzed, 1)
	assert.Equal(t, fresh.ID, res.Analyzed[0].ChildCellID)
	// The divergent flag was repaired without a new analyzer call for it.
	assert.Equal(t, cell.StateAnalysisComplete, h.children.state(stale.ID))
	assert.Equal(t, 1, h.analyzer.calls)
}

func TestRunDailyLimitPartialGrant(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	a := pendingCell(parentID, 52.5201, 13.4001)
	b := pendingCell(parentID, 52.5205, 13.4005)
	h := newGateHarness(t, 1, a, b)

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.True(t, res.LimitReached)
	assert.Len(t, res.Analyzed, 1)
	assert.Zero(t, res.Remaining)
}

func TestRunDailyLimitExhausted(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	h := newGateHarness(t, 0, pendingCell(parentID, 52.5201, 13.4001))

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.True(t, res.LimitReached)
	assert.Empty(t, res.Analyzed)
	assert.Zero(t, h.analyzer.calls)
	assert.Zero(t, h.imagery.calls)
}

func TestRunAnalyzerFailureIsTerminal(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	c := pendingCell(parentID, 52.5201, 13.4001)
	h := newGateHarness(t, 10, c)
	h.analyzer.err = errors.New(errors.ErrCodeAnalyzerUnavailable, "providers exhausted")

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Analyzed)
	// Failure still flips the flag; the cell is never retried.
	assert.Equal(t, cell.StateAnalysisComplete, h.children.state(c.ID))
	_, gerr := h.analyses.GetByChildCellID(context.Background(), c.ID)
	assert.True(t, errors.IsCode(gerr, errors.ErrCodeAnalysisNotFound))
}

func TestRunImageryFailureIsTerminal(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	c := pendingCell(parentID, 52.5201, 13.4001)
	h := newGateHarness(t, 10, c)
	h.imagery.err = errors.New(errors.ErrCodeImageryUnavailable, "no provider configured")

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, h.analyzer.calls)
	assert.Equal(t, cell.StateAnalysisComplete, h.children.state(c.ID))
}

func TestRunNothingPending(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	done := pendingCell(parentID, 52.5201, 13.4001)
	done.State = cell.StateAnalysisComplete
	h := newGateHarness(t, 5, done)

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	assert.Zero(t, res.Pending)
	assert.Empty(t, res.Analyzed)
	assert.Equal(t, 5, res.Remaining)
}

func TestRunMaxCellsOverride(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	a := pendingCell(parentID, 52.5201, 13.4001)
	b := pendingCell(parentID, 52.5205, 13.4005)
	h := newGateHarness(t, 10, a, b)

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
		MaxCells: 1,
	})
	require.NoError(t, err)

	assert.Len(t, res.Analyzed, 1)
	assert.False(t, res.LimitReached)
}

func TestRunRequiresUserID(t *testing.T) {
	t.Parallel()
	h := newGateHarness(t, 10)

	_, err := h.svc.Run(context.Background(), RunInput{ParentCellID: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRunCreateConflictAdoptsExistingRow(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	c := pendingCell(parentID, 52.5201, 13.4001)
	h := newGateHarness(t, 10, c)

	// Seed the row after the cross-check would have run: simulate by wrapping
	// the analyzer to insert the competing row mid-flight.
	competing := domainAnalysis.New(c.ID, "other-user")
	raced := &racingAnalyzer{inner: h.analyzer, repo: h.analyses, row: competing}
	h.svc = NewService(
		h.children, h.analyses, h.imagery, raced, h.quota,
		kafka.NewNopPublisher(), newTestMetrics(t),
		config.AnalysisConfig{MaxPerRequest: 2, MaxPerUserDaily: 10},
		logging.NewNopLogger(),
	)

	res, err := h.svc.Run(context.Background(), RunInput{
		ParentCellID: parentID, UserID: "user-1", UserLat: 52.52, UserLon: 13.40,
	})
	require.NoError(t, err)

	require.Len(t, res.Analyzed, 1)
	// The winner's row is returned, not a duplicate.
	assert.Equal(t, competing.ID, res.Analyzed[0].ID)
	assert.Equal(t, "other-user", res.Analyzed[0].UserID)
}

// racingAnalyzer inserts a competing analysis row before answering, forcing
// the service's Create into the conflict path.
type racingAnalyzer struct {
	inner *stubAnalyzer
	repo  *fakeAnalysisRepo
	row   *domainAnalysis.CellAnalysis
}

func (r *racingAnalyzer) Analyze(ctx context.Context, image []byte, cellCtx vision.CellContext) (*vision.Result, error) {
	if err := r.repo.Create(ctx, r.row); err != nil {
		return nil, err
	}
	return r.inner.Analyze(ctx, image, cellCtx)
}

func newTestMetrics(t *testing.T) *prometheus.AppMetrics {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	return prometheus.NewAppMetrics(collector)
}
