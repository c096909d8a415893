package client

import (
	"context"
	"net/http"
	"net/url"
)

// MissionsClient calls the mission endpoints.
type MissionsClient struct {
	client *Client
}

// MissionAction is one required step of a mission.
type MissionAction struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Mission is one cooling task as returned by the API.
type Mission struct {
	ID              string          `json:"id"`
	CellAnalysisID  string          `json:"cell_analysis_id"`
	ChildCellID     string          `json:"child_cell_id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Reasons         []string        `json:"reasons,omitempty"`
	RequiredActions []MissionAction `json:"required_actions"`
	LocationType    string          `json:"location_type,omitempty"`
	HeatScore       float64         `json:"heat_score"`
	Lat             float64         `json:"lat"`
	Lon             float64         `json:"lon"`
	DistanceM       float64         `json:"distance_m"`
	Status          string          `json:"status"`
	Points          int             `json:"points"`
}

// GenerateMissionsRequest parameterizes one generation run.
type GenerateMissionsRequest struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	MaxMissions int     `json:"max_missions,omitempty"`
}

// GenerateMissionsResult reports one generation run.
type GenerateMissionsResult struct {
	Candidates int       `json:"candidates"`
	Created    []Mission `json:"created"`
	Skipped    int       `json:"skipped"`
}

// MissionCounts is the per-status mission tally.
type MissionCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// CompleteMissionResult carries the completed mission and its points.
type CompleteMissionResult struct {
	Mission       Mission `json:"mission"`
	PointsAwarded int     `json:"points_awarded"`
}

// Generate builds missions from the caller's unmissioned analyses.
func (m *MissionsClient) Generate(ctx context.Context, req GenerateMissionsRequest) (*GenerateMissionsResult, error) {
	var out GenerateMissionsResult
	if err := m.client.do(ctx, http.MethodPost, "/api/v1/missions/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the caller's missions, optionally filtered by status.
func (m *MissionsClient) List(ctx context.Context, status string) ([]Mission, error) {
	path := "/api/v1/missions"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out struct {
		Missions []Mission `json:"missions"`
	}
	if err := m.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Missions, nil
}

// Counts returns the caller's mission tally per status.
func (m *MissionsClient) Counts(ctx context.Context) (*MissionCounts, error) {
	var out MissionCounts
	if err := m.client.do(ctx, http.MethodGet, "/api/v1/missions/counts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one mission.
func (m *MissionsClient) Get(ctx context.Context, id string) (*Mission, error) {
	var out Mission
	if err := m.client.do(ctx, http.MethodGet, "/api/v1/missions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activate moves a pending mission to active.
func (m *MissionsClient) Activate(ctx context.Context, id string) (*Mission, error) {
	var out Mission
	if err := m.client.do(ctx, http.MethodPost, "/api/v1/missions/"+id+"/activate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Complete finishes a mission and returns the awarded points.
func (m *MissionsClient) Complete(ctx context.Context, id string) (*CompleteMissionResult, error) {
	var out CompleteMissionResult
	if err := m.client.do(ctx, http.MethodPost, "/api/v1/missions/"+id+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel abandons a mission.
func (m *MissionsClient) Cancel(ctx context.Context, id string) (*Mission, error) {
	var out Mission
	if err := m.client.do(ctx, http.MethodPost, "/api/v1/missions/"+id+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
