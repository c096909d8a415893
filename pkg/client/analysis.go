package client

import (
	"context"
	"net/http"
)

// AnalysisClient calls the dedup-guarded analysis endpoints.
type AnalysisClient struct {
	client *Client
}

// RunAnalysisRequest asks the gate to analyze a parent cell's hotspots.
type RunAnalysisRequest struct {
	ParentCellID string  `json:"parent_cell_id"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	MaxCells     int     `json:"max_cells,omitempty"`
}

// SuggestedAction is one structured intervention proposed by the analyzer.
type SuggestedAction struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// CellAnalysis is one stored analysis row.
type CellAnalysis struct {
	ID               string            `json:"id"`
	ChildCellID      string            `json:"child_cell_id"`
	UserID           string            `json:"user_id"`
	Summary          string            `json:"summary"`
	MainCause        string            `json:"main_cause"`
	LocationType     string            `json:"location_type,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	Confidence       float64           `json:"confidence"`
	Provider         string            `json:"provider,omitempty"`
	MissionGenerated bool              `json:"mission_generated"`
}

// RunAnalysisResult reports one gate run.
type RunAnalysisResult struct {
	Pending      int            `json:"pending"`
	Dropped      int            `json:"dropped"`
	Analyzed     []CellAnalysis `json:"analyzed"`
	Failed       int            `json:"failed"`
	LimitReached bool           `json:"limit_reached"`
	Remaining    int            `json:"remaining"`
}

// Run analyzes the closest pending hotspots of a parent cell.
func (a *AnalysisClient) Run(ctx context.Context, req RunAnalysisRequest) (*RunAnalysisResult, error) {
	var out RunAnalysisResult
	if err := a.client.do(ctx, http.MethodPost, "/api/v1/analysis/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForCell fetches the stored analysis of a child cell.
func (a *AnalysisClient) GetForCell(ctx context.Context, childCellID string) (*CellAnalysis, error) {
	var out CellAnalysis
	if err := a.client.do(ctx, http.MethodGet, "/api/v1/cells/"+childCellID+"/analysis", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
