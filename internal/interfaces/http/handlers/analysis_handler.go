package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/internal/application/analysis"
	domainAnalysis "github.com/edu008/HeatQuest/internal/domain/analysis"
)

// AnalysisService is the slice of the analysis gate the handler needs.
type AnalysisService interface {
	Run(ctx context.Context, in analysis.RunInput) (*analysis.RunResult, error)
	GetByChildCell(ctx context.Context, childCellID uuid.UUID) (*domainAnalysis.CellAnalysis, error)
}

// AnalysisHandler serves the dedup-guarded analysis endpoints.
type AnalysisHandler struct {
	svc AnalysisService
}

func NewAnalysisHandler(svc AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

type runAnalysisRequest struct {
	ParentCellID uuid.UUID `json:"parent_cell_id" binding:"required"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	MaxCells     int       `json:"max_cells"`
}

type runAnalysisResponse struct {
	Pending      int                            `json:"pending"`
	Dropped      int                            `json:"dropped"`
	Analyzed     []*domainAnalysis.CellAnalysis `json:"analyzed"`
	Failed       int                            `json:"failed"`
	LimitReached bool                           `json:"limit_reached"`
	Remaining    int                            `json:"remaining"`
}

// Run handles POST /api/v1/analysis/run.
func (h *AnalysisHandler) Run(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		respondValidation(c, "missing "+userIDHeader+" header")
		return
	}
	var req runAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.Run(c.Request.Context(), analysis.RunInput{
		ParentCellID: req.ParentCellID,
		UserID:       uid,
		UserLat:      req.Lat,
		UserLon:      req.Lon,
		MaxCells:     req.MaxCells,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	analyzed := res.Analyzed
	if analyzed == nil {
		analyzed = []*domainAnalysis.CellAnalysis{}
	}
	c.JSON(http.StatusOK, runAnalysisResponse{
		Pending:      res.Pending,
		Dropped:      res.Dropped,
		Analyzed:     analyzed,
		Failed:       res.Failed,
		LimitReached: res.LimitReached,
		Remaining:    res.Remaining,
	})
}

// GetForCell handles GET /api/v1/cells/:id/analysis.
func (h *AnalysisHandler) GetForCell(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondValidation(c, "invalid cell id")
		return
	}
	a, err := h.svc.GetByChildCell(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
