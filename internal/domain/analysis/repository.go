package analysis

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for cell analyses.
type Repository interface {
	Create(ctx context.Context, a *CellAnalysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*CellAnalysis, error)
	GetByChildCellID(ctx context.Context, childCellID uuid.UUID) (*CellAnalysis, error)
	// ExistsForCells returns the subset of childCellIDs that already have an
	// analysis row.  Used by the dedup gate to cross-check cells whose
	// lifecycle flag claims they are still pending.
	ExistsForCells(ctx context.Context, childCellIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	// ListUnmissioned returns analyses for a user that have not produced a
	// mission yet, newest first, capped at limit.
	ListUnmissioned(ctx context.Context, userID string, limit int) ([]*CellAnalysis, error)
	MarkMissionGenerated(ctx context.Context, id uuid.UUID) error
}
