// Package mission implements the player-facing mission aggregate: a concrete
// cooling task derived from exactly one cell analysis for exactly one user.
package mission

import (
	"time"

	"github.com/google/uuid"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// Status is the mission lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// allowedTransitions defines the legal next states from each status.
//
//	pending ──► active ──► completed
//	   │           │
//	   └───────────┴──► cancelled
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CompletionPoints is the XP awarded when a mission is completed.
const CompletionPoints = 100

// Action is one required step of a mission.  Priority, name, and description
// come from the analysis's suggested actions; Completed tracks the player's
// progress on the individual step.
type Action struct {
	Priority    string `json:"priority"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Mission is one cooling task.  The (CellAnalysisID, UserID) pair is unique:
// a user never receives two missions for the same analysis.
type Mission struct {
	ID             uuid.UUID `json:"id"`
	CellAnalysisID uuid.UUID `json:"cell_analysis_id"`
	ChildCellID    uuid.UUID `json:"child_cell_id"`
	UserID         string    `json:"user_id"`

	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Reasons         []string `json:"reasons,omitempty"`
	RequiredActions []Action `json:"required_actions"`
	LocationType    string   `json:"location_type,omitempty"`
	HeatScore       float64  `json:"heat_score"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	DistanceM       float64  `json:"distance_m"`

	Status      Status     `json:"status"`
	Points      int        `json:"points"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// New builds a pending mission for an analysis/user pair.
func New(analysisID, childCellID uuid.UUID, userID string) *Mission {
	now := time.Now().UTC()
	return &Mission{
		ID:             uuid.New(),
		CellAnalysisID: analysisID,
		ChildCellID:    childCellID,
		UserID:         userID,
		Status:         StatusPending,
		Points:         CompletionPoints,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Transition moves the mission to the next status, enforcing the lifecycle
// state machine.  Completing a mission stamps CompletedAt.
func (m *Mission) Transition(next Status) error {
	if !next.Valid() {
		return errors.Newf(errors.ErrCodeMissionInvalidState, "unknown status %q", next)
	}
	for _, allowed := range allowedTransitions[m.Status] {
		if next == allowed {
			m.Status = next
			m.UpdatedAt = time.Now().UTC()
			if next == StatusCompleted {
				t := m.UpdatedAt
				m.CompletedAt = &t
			}
			return nil
		}
	}
	return errors.Newf(errors.ErrCodeMissionInvalidState,
		"cannot transition mission from %q to %q", m.Status, next)
}
