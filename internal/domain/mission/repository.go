package mission

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for missions.
type Repository interface {
	// Create inserts a mission.  A unique-key violation on
	// (cell_analysis_id, user_id) is surfaced as ErrCodeMissionAlreadyExists.
	Create(ctx context.Context, m *Mission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Mission, error)
	// ExistsForAnalysis is the backup dedup guard: it answers whether any
	// mission already exists for the (analysisID, userID) pair, independent
	// of the analysis row's own mission_generated flag.
	ExistsForAnalysis(ctx context.Context, analysisID uuid.UUID, userID string) (bool, error)
	// ListByUser returns a user's missions, optionally filtered to one
	// status, newest first.
	ListByUser(ctx context.Context, userID string, status *Status) ([]*Mission, error)
	// CountByStatus returns mission counts per status for a user.
	CountByStatus(ctx context.Context, userID string) (map[Status]int, error)
	Update(ctx context.Context, m *Mission) error
}
