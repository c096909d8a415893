package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/application/mission"
	domainMission "github.com/edu008/HeatQuest/internal/domain/mission"
	"github.com/edu008/HeatQuest/pkg/errors"
)

type stubMissions struct {
	generated *mission.GenerateResult
	missions  []*domainMission.Mission
	counts    map[domainMission.Status]int
	err       error
	lastIn    mission.GenerateInput
}

func (s *stubMissions) Generate(_ context.Context, in mission.GenerateInput) (*mission.GenerateResult, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.generated, nil
}

func (s *stubMissions) Get(context.Context, uuid.UUID) (*domainMission.Mission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.missions[0], nil
}

func (s *stubMissions) List(_ context.Context, _ string, status *domainMission.Status) ([]*domainMission.Mission, error) {
	if s.err != nil {
		return nil, s.err
	}
	if status == nil {
		return s.missions, nil
	}
	var out []*domainMission.Mission
	for _, m := range s.missions {
		if m.Status == *status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubMissions) Counts(context.Context, string) (map[domainMission.Status]int, error) {
	return s.counts, s.err
}

func (s *stubMissions) Activate(_ context.Context, _ uuid.UUID, _ string) (*domainMission.Mission, error) {
	return s.lifecycle(domainMission.StatusActive)
}

func (s *stubMissions) Complete(_ context.Context, _ uuid.UUID, _ string) (*domainMission.Mission, error) {
	return s.lifecycle(domainMission.StatusCompleted)
}

func (s *stubMissions) Cancel(_ context.Context, _ uuid.UUID, _ string) (*domainMission.Mission, error) {
	return s.lifecycle(domainMission.StatusCancelled)
}

func (s *stubMissions) lifecycle(status domainMission.Status) (*domainMission.Mission, error) {
	if s.err != nil {
		return nil, s.err
	}
	m := *s.missions[0]
	m.Status = status
	return &m, nil
}

func missionRouter(svc MissionService) *gin.Engine {
	r := gin.New()
	h := NewMissionHandler(svc)
	g := r.Group("/api/v1/missions")
	g.POST("/generate", h.Generate)
	g.GET("", h.List)
	g.GET("/counts", h.Counts)
	g.GET("/:id", h.Get)
	g.POST("/:id/activate", h.Activate)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/cancel", h.Cancel)
	return r
}

func sampleMission() *domainMission.Mission {
	m := domainMission.New(uuid.New(), uuid.New(), "user-1")
	m.Title = "High Heat: Parking Zone"
	m.HeatScore = 24.5
	return m
}

func TestGenerateMissions(t *testing.T) {
	t.Parallel()
	m := sampleMission()
	stub := &stubMissions{generated: &mission.GenerateResult{
		Candidates: 3,
		Created:    []*domainMission.Mission{m},
		Skipped:    2,
	}}
	r := missionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/missions/generate",
		strings.NewReader(`{"lat": 52.52, "lon": 13.40, "max_missions": 3}`))
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body generateMissionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Candidates)
	assert.Equal(t, 2, body.Skipped)
	require.Len(t, body.Created, 1)
	assert.Equal(t, m.Title, body.Created[0].Title)

	assert.Equal(t, "user-1", stub.lastIn.UserID)
	assert.Equal(t, 3, stub.lastIn.MaxMissions)
}

func TestGenerateMissionsRequiresUserHeader(t *testing.T) {
	t.Parallel()
	r := missionRouter(&stubMissions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/missions/generate", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMissionsWithStatusFilter(t *testing.T) {
	t.Parallel()
	pending := sampleMission()
	done := sampleMission()
	done.Status = domainMission.StatusCompleted
	r := missionRouter(&stubMissions{missions: []*domainMission.Mission{pending, done}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/missions?status=completed", nil)
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Missions []*domainMission.Mission `json:"missions"`
		Count    int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Missions, 1)
	assert.Equal(t, domainMission.StatusCompleted, body.Missions[0].Status)
}

func TestMissionCounts(t *testing.T) {
	t.Parallel()
	r := missionRouter(&stubMissions{counts: map[domainMission.Status]int{
		domainMission.StatusPending:   2,
		domainMission.StatusCompleted: 1,
	}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/missions/counts", nil)
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body["total"])
	assert.Equal(t, 2, body["pending"])
	assert.Equal(t, 1, body["completed"])
	assert.Equal(t, 0, body["active"])
}

func TestCompleteMissionAwardsPoints(t *testing.T) {
	t.Parallel()
	m := sampleMission()
	r := missionRouter(&stubMissions{missions: []*domainMission.Mission{m}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/missions/"+m.ID.String()+"/complete", nil)
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Mission       *domainMission.Mission `json:"mission"`
		PointsAwarded int                    `json:"points_awarded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domainMission.StatusCompleted, body.Mission.Status)
	assert.Equal(t, domainMission.CompletionPoints, body.PointsAwarded)
}

func TestMissionLifecycleErrorsMapToStatus(t *testing.T) {
	t.Parallel()
	r := missionRouter(&stubMissions{err: errors.New(errors.ErrCodeMissionInvalidState, "cannot transition")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/missions/"+uuid.NewString()+"/cancel", nil)
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissionGetRejectsBadID(t *testing.T) {
	t.Parallel()
	r := missionRouter(&stubMissions{missions: []*domainMission.Mission{sampleMission()}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/missions/not-a-uuid", nil)
	req.Header.Set(userIDHeader, "user-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
