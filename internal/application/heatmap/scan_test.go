package heatmap

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/application/hotspot"
	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/domain/cell"
	"github.com/edu008/HeatQuest/internal/infrastructure/database/redis"
	"github.com/edu008/HeatQuest/internal/infrastructure/messaging/kafka"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/prometheus"
	"github.com/edu008/HeatQuest/internal/infrastructure/raster"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeParentRepo struct {
	mu        sync.Mutex
	byKey     map[string]*cell.ParentCell
	createErr error
}

func newFakeParentRepo() *fakeParentRepo {
	return &fakeParentRepo{byKey: map[string]*cell.ParentCell{}}
}

func (r *fakeParentRepo) Create(_ context.Context, p *cell.ParentCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byKey[p.CellKey]; ok {
		return errors.New(errors.ErrCodeCellAlreadyExists, "parent cell already exists")
	}
	cp := *p
	r.byKey[p.CellKey] = &cp
	return nil
}

func (r *fakeParentRepo) GetByKey(_ context.Context, key string) (*cell.ParentCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byKey[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeCellNotFound, "parent cell not found")
	}
	cp := *p
	return &cp, nil
}

func (r *fakeParentRepo) GetByID(_ context.Context, id uuid.UUID) (*cell.ParentCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byKey {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.New(errors.ErrCodeCellNotFound, "parent cell not found")
}

func (r *fakeParentRepo) IncrementScanCount(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byKey {
		if p.ID == id {
			p.ScanCount++
			return nil
		}
	}
	return errors.New(errors.ErrCodeCellNotFound, "parent cell not found")
}

func (r *fakeParentRepo) UpdateChildCount(_ context.Context, id uuid.UUID, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byKey {
		if p.ID == id {
			p.ChildCount = n
			return nil
		}
	}
	return errors.New(errors.ErrCodeCellNotFound, "parent cell not found")
}

func (r *fakeParentRepo) scanCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byKey[key]; ok {
		return p.ScanCount
	}
	return 0
}

type fakeChildRepo struct {
	mu       sync.Mutex
	byParent map[uuid.UUID][]*cell.ChildCell
}

func newFakeChildRepo() *fakeChildRepo {
	return &fakeChildRepo{byParent: map[uuid.UUID][]*cell.ChildCell{}}
}

func (r *fakeChildRepo) CreateBatch(_ context.Context, cells []*cell.ChildCell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cells {
		cp := *c
		r.byParent[c.ParentCellID] = append(r.byParent[c.ParentCellID], &cp)
	}
	return nil
}

func (r *fakeChildRepo) ListByParent(_ context.Context, parentID uuid.UUID, onlyPending bool) ([]*cell.ChildCell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*cell.ChildCell
	for _, c := range r.byParent[parentID] {
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
	for _, cs := range r.byParent {
		for _, c := range cs {
			if c.ID == id {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, errors.New(errors.ErrCodeCellNotFound, "child cell not found")
}

func (r *fakeChildRepo) UpdateState(_ context.Context, id uuid.UUID, state cell.AnalysisState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cs := range r.byParent {
		for _, c := range cs {
			if c.ID == id {
				c.State = state
				return nil
			}
		}
	}
	return errors.New(errors.ErrCodeCellNotFound, "child cell not found")
}

// fakeCache is an in-memory redis.Cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *fakeCache) GetOrLoad(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	return c.Get(ctx, key, dest)
}

func (c *fakeCache) DeleteByPrefix(context.Context, string) (int64, error) { return 0, nil }
func (c *fakeCache) Ping(context.Context) error                            { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type scanHarness struct {
	svc      Service
	parents  *fakeParentRepo
	children *fakeChildRepo
	cache    *fakeCache
}

func newScanHarness(t *testing.T, src RasterSource) *scanHarness {
	t.Helper()
	log := logging.NewNopLogger()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, log)
	require.NoError(t, err)
	detector, err := hotspot.NewDetector(config.HotspotConfig{Strategy: hotspot.StrategyPercentile, Percentile: 0.2}, log)
	require.NoError(t, err)

	h := &scanHarness{
		parents:  newFakeParentRepo(),
		children: newFakeChildRepo(),
		cache:    newFakeCache(),
	}
	h.svc = NewService(
		h.parents,
		h.children,
		NewScorer(src, 0.3, raster.EstimatedUrbanNDVI, log),
		detector,
		h.cache,
		kafka.NewNopPublisher(),
		prometheus.NewAppMetrics(collector),
		config.GridConfig{CellSizeM: 100, MaxRadiusM: 2000},
		config.HeatmapConfig{NDVIWeight: 0.3, EstimatedNDVI: raster.EstimatedUrbanNDVI, UseBatch: true, CacheTTL: time.Minute},
		log,
	)
	return h
}

func hotSource(t *testing.T) *fakeSource {
	t.Helper()
	return &fakeSource{
		temp: makeBand(t, raster.TemperatureNoData, 40000, 20, 45000),
		ndvi: makeBand(t, raster.NDVINoData, 0.4, 0, 0),
	}
}

const (
	scanLat = 52.525
	scanLon = 13.405
)

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestScanMissRunsFullPipeline(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))

	res, err := h.svc.FindOrCreateAreaCache(context.Background(), scanLat, scanLon, ScanOptions{UseCache: true, UseBatch: true})
	require.NoError(t, err)

	assert.False(t, res.FromCache)
	require.NotNil(t, res.Parent)
	assert.Equal(t, cell.ParentKey(scanLat, scanLon), res.Parent.CellKey)
	require.NotEmpty(t, res.Children)

	hotspots := 0
	for _, c := range res.Children {
		require.NotNil(t, c.HeatScore)
		if c.IsHotspot {
			hotspots++
			assert.Equal(t, cell.StatePendingAnalysis, c.State)
		} else {
			assert.Equal(t, cell.StateNotHotspot, c.State)
		}
	}
	assert.Greater(t, hotspots, 0)
	assert.Less(t, hotspots, len(res.Children))

	// Persisted and fast-path cached.
	stored, err := h.parents.GetByKey(context.Background(), res.Parent.CellKey)
	require.NoError(t, err)
	assert.Equal(t, len(res.Children), stored.ChildCount)
	ok, err := h.cache.Exists(context.Background(), parentCacheKey(res.Parent.CellKey))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScanSecondCallHitsCache(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()
	opts := ScanOptions{UseCache: true, UseBatch: true}

	first, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Parent.ID, second.Parent.ID)
	assert.Len(t, second.Children, len(first.Children))
	assert.Equal(t, 2, h.parents.scanCount(first.Parent.CellKey))
}

func TestScanCountTracksTotalScans(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()
	opts := ScanOptions{UseCache: true, UseBatch: true}

	// The creating scan counts as the first one.
	first, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Parent.ScanCount)
	assert.Equal(t, 1, h.parents.scanCount(first.Parent.CellKey))

	// Every hit bumps both the stored row and the served parent.
	second, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Parent.ScanCount)
	assert.Equal(t, 2, h.parents.scanCount(first.Parent.CellKey))

	third, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Parent.ScanCount)

	// The fast-path entry is refreshed on each hit, so redis never serves the
	// pre-increment counter back.
	var cached cell.ParentCell
	require.NoError(t, h.cache.Get(ctx, parentCacheKey(first.Parent.CellKey), &cached))
	assert.Equal(t, 3, cached.ScanCount)
}

func TestScanPostgresHitWhenFastPathCold(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()
	opts := ScanOptions{UseCache: true, UseBatch: true}

	first, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)

	// Simulate redis eviction; the postgres row must still serve the hit.
	require.NoError(t, h.cache.Delete(ctx, parentCacheKey(first.Parent.CellKey)))

	second, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	// The fast path is repopulated.
	ok, err := h.cache.Exists(ctx, parentCacheKey(first.Parent.CellKey))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScanAdoptsWinnerOnCreateRace(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()

	// Seed the winner's row directly, then force the service down the scan
	// path by disabling cache lookups.
	winner := cell.NewParentCell(scanLat, scanLon)
	require.NoError(t, h.parents.Create(ctx, winner))
	require.NoError(t, h.children.CreateBatch(ctx, []*cell.ChildCell{{
		ID:           uuid.New(),
		ParentCellID: winner.ID,
		GridID:       "cell_0_0",
		State:        cell.StateNotHotspot,
	}}))

	res, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, ScanOptions{UseCache: false, UseBatch: true})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, winner.ID, res.Parent.ID)
	assert.Len(t, res.Children, 1)
}

func TestScanValidatesInput(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()

	tests := []struct {
		name string
		in   ScanInput
	}{
		{"latitude out of range", ScanInput{Lat: 91, Lon: 13.4, RadiusM: 500}},
		{"longitude out of range", ScanInput{Lat: 52.5, Lon: -181, RadiusM: 500}},
		{"zero radius", ScanInput{Lat: scanLat, Lon: scanLon}},
		{"radius above cap", ScanInput{Lat: scanLat, Lon: scanLon, RadiusM: 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Scan(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}
}

func TestScanReturnsRequestBound(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))

	res, err := h.svc.Scan(context.Background(), ScanInput{
		Lat: scanLat, Lon: scanLon, RadiusM: 500, UseCache: true, UseBatch: true,
	})
	require.NoError(t, err)

	b := res.RequestBound
	assert.InDelta(t, scanLat, (b.Min[1]+b.Max[1])/2, 1e-9)
	assert.InDelta(t, scanLon, (b.Min[0]+b.Max[0])/2, 1e-9)
	// ~500 m of latitude in degrees.
	assert.InDelta(t, 2*500.0/111000.0, b.Max[1]-b.Min[1], 1e-9)
}

func TestScanPinsTemperatureScene(t *testing.T) {
	t.Parallel()
	src := hotSource(t)
	src.sceneID = "LC09_20260715"
	h := newScanHarness(t, src)

	res, err := h.svc.Scan(context.Background(), ScanInput{
		Lat: scanLat, Lon: scanLon, RadiusM: 500,
		SceneID: "LC09_20260715", UseCache: true, UseBatch: true,
	})
	require.NoError(t, err)
	for _, c := range res.Children {
		assert.Equal(t, "LC09_20260715", c.SceneID)
	}
	require.Equal(t, []string{"LC09_20260715"}, src.tempPins)
	require.Equal(t, []string{""}, src.ndviPins)
}

func TestScanMissingDataFailsWithoutPersisting(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, &fakeSource{})

	_, err := h.svc.FindOrCreateAreaCache(context.Background(), scanLat, scanLon, ScanOptions{UseCache: true, UseBatch: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanDataMissing))

	_, err = h.parents.GetByKey(context.Background(), cell.ParentKey(scanLat, scanLon))
	assert.True(t, errors.IsCode(err, errors.ErrCodeCellNotFound))
}

func TestConcurrentScansCollapse(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()
	opts := ScanOptions{UseCache: true, UseBatch: true}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*ScanResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
		}()
	}
	wg.Wait()

	var parentID uuid.UUID
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		if parentID == (uuid.UUID{}) {
			parentID = results[i].Parent.ID
		}
		assert.Equal(t, parentID, results[i].Parent.ID)
	}
	// Exactly one parent row exists regardless of how the calls interleaved.
	assert.Len(t, h.parents.byKey, 1)
}

func TestExportGeoJSON(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))

	res, err := h.svc.FindOrCreateAreaCache(context.Background(), scanLat, scanLon, ScanOptions{UseCache: true, UseBatch: true})
	require.NoError(t, err)

	fc := ExportGeoJSON(res.Children)
	require.Len(t, fc.Features, len(res.Children))

	raw, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)
	assert.Equal(t, "Polygon", decoded.Features[0].Geometry.Type)
	assert.Contains(t, decoded.Features[0].Properties, "heat_score")
	assert.Contains(t, decoded.Features[0].Properties, "is_hotspot")
}

func TestScanContextRecordsStages(t *testing.T) {
	t.Parallel()
	h := newScanHarness(t, hotSource(t))
	ctx := context.Background()
	opts := ScanOptions{UseCache: true, UseBatch: true}

	miss, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	require.NotNil(t, miss.Progress)
	assert.Equal(t, StageDone, miss.Progress.Stage())

	var names []string
	for _, st := range miss.Progress.Stages() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		StageCacheLookup, StageGrid, StageScoring, StageDetection, StagePersist,
	}, names)

	hit, err := h.svc.FindOrCreateAreaCache(ctx, scanLat, scanLon, opts)
	require.NoError(t, err)
	require.NotNil(t, hit.Progress)
	stages := hit.Progress.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, StageCacheLookup, stages[0].Name)
	assert.Equal(t, StageServe, stages[1].Name)
}
