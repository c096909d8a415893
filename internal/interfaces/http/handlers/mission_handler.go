package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/internal/application/mission"
	domainMission "github.com/edu008/HeatQuest/internal/domain/mission"
)

// MissionService is the slice of the mission application service the handler
// needs.
type MissionService interface {
	Generate(ctx context.Context, in mission.GenerateInput) (*mission.GenerateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domainMission.Mission, error)
	List(ctx context.Context, userID string, status *domainMission.Status) ([]*domainMission.Mission, error)
	Counts(ctx context.Context, userID string) (map[domainMission.Status]int, error)
	Activate(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
	Complete(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
	Cancel(ctx context.Context, id uuid.UUID, userID string) (*domainMission.Mission, error)
}

// MissionHandler serves the mission API.
type MissionHandler struct {
	svc MissionService
}

func NewMissionHandler(svc MissionService) *MissionHandler {
	return &MissionHandler{svc: svc}
}

type generateMissionsRequest struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	MaxMissions int     `json:"max_missions"`
}

type generateMissionsResponse struct {
	Candidates int                      `json:"candidates"`
	Created    []*domainMission.Mission `json:"created"`
	Skipped    int                      `json:"skipped"`
}

// Generate handles POST /api/v1/missions/generate.
func (h *MissionHandler) Generate(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondValidation(c, "missing "+userIDHeader+" header")
		return
	}
	var req generateMissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Generate(c.Request.Context(), mission.GenerateInput{
		UserID:      uid,
		UserLat:     req.Lat,
		UserLon:     req.Lon,
		MaxMissions: req.MaxMissions,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	created := res.Created
	if created == nil {
		created = []*domainMission.Mission{}
	}
	c.JSON(http.StatusOK, generateMissionsResponse{
		Candidates: res.Candidates,
		Created:    created,
		Skipped:    res.Skipped,
	})
}

// List handles GET /api/v1/missions with an optional status filter.
func (h *MissionHandler) List(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondValidation(c, "missing "+userIDHeader+" header")
		return
	}
	var status *domainMission.Status
	if raw := c.Query("status"); raw != "" {
		st := domainMission.Status(raw)
		status = &st
	}

	missions, err := h.svc.List(c.Request.Context(), uid, status)
	if err != nil {
		respondError(c, err)
		return
	}
	if missions == nil {
		missions = []*domainMission.Mission{}
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions, "count": len(missions)})
}

// Counts handles GET /api/v1/missions/counts.
func (h *MissionHandler) Counts(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondValidation(c, "missing "+userIDHeader+" header")
		return
	}
	counts, err := h.svc.Counts(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"pending":   counts[domainMission.StatusPending],
		"active":    counts[domainMission.StatusActive],
		"completed": counts[domainMission.StatusCompleted],
		"cancelled": counts[domainMission.StatusCancelled],
	})
}

// Get handles GET /api/v1/missions/:id.
func (h *MissionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, "invalid mission id")
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Activate handles POST /api/v1/missions/:id/activate.
func (h *MissionHandler) Activate(c *gin.Context) {
	h.lifecycle(c, h.svc.Activate)
}

// Complete handles POST /api/v1/missions/:id/complete.  The awarded points
// ride along in the response.
func (h *MissionHandler) Complete(c *gin.Context) {
	id, uid, ok := h.lifecycleArgs(c)
	if !ok {
		return
	}
	m, err := h.svc.Complete(c.Request.Context(), id, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mission": m, "points_awarded": m.Points})
}

// Cancel handles POST /api/v1/missions/:id/cancel.
func (h *MissionHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.svc.Cancel)
}

func (h *MissionHandler) lifecycle(c *gin.Context, op func(context.Context, uuid.UUID, string) (*domainMission.Mission, error)) {
	id, uid, ok := h.lifecycleArgs(c)
	if !ok {
		return
	}
	m, err := op(c.Request.Context(), id, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MissionHandler) lifecycleArgs(c *gin.Context) (uuid.UUID, string, bool) {
	uid := userID(c)
	if uid == "" {
		respondValidation(c, "missing "+userIDHeader+" header")
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, "invalid mission id")
		return uuid.Nil, "", false
	}
	return id, uid, true
}
