// Package analysis holds the persisted result of analyzing a hotspot cell:
// what the external analyzer concluded about the cause of the heat anomaly
// and what interventions it suggested.  One analysis exists per child cell.
package analysis

import (
	"time"

	"github.com/google/uuid"
)

// SuggestedAction is one cooling intervention proposed by the analyzer, kept
// structured end to end: the model emits it, the analysis row stores it as
// JSONB, and mission generation carries it into the mission's action list.
type SuggestedAction struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// CellAnalysis is the durable record of one completed hotspot analysis.
// ChildCellID is unique: a cell is analyzed at most once, and the existence
// of a row here is the authoritative signal that analysis happened, used to
// cross-check the cell's own lifecycle flag.
type CellAnalysis struct {
	ID          uuid.UUID `json:"id"`
	ChildCellID uuid.UUID `json:"child_cell_id"`
	UserID      string    `json:"user_id"`

	Summary          string            `json:"summary"`
	MainCause        string            `json:"main_cause"`
	LocationType     string            `json:"location_type,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	Confidence       float64           `json:"confidence"`
	Provider         string            `json:"provider,omitempty"`

	// MissionGenerated is the primary dedup flag for mission creation.  It is
	// backed by a second guard on the missions table keyed by
	// (cell_analysis_id, user_id); both must agree before a mission is built.
	MissionGenerated bool `json:"mission_generated"`

	CreatedAt time.Time `json:"created_at"`
}

// New builds an analysis record for a cell.
func New(childCellID uuid.UUID, userID string) *CellAnalysis {
	return &CellAnalysis{
		ID:          uuid.New(),
		ChildCellID: childCellID,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
}
