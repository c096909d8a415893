package cell

import (
	"context"

	"github.com/google/uuid"
)

// ParentRepository defines the persistence contract for coarse cache cells.
type ParentRepository interface {
	// Create inserts a new parent row.  A unique-key violation on CellKey is
	// surfaced as ErrCodeCellAlreadyExists so callers can resolve the race by
	// re-reading.
	Create(ctx context.Context, p *ParentCell) error
	GetByKey(ctx context.Context, cellKey string) (*ParentCell, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ParentCell, error)
	// IncrementScanCount bumps the hit counter.  Best effort: callers ignore
	// failures and lost increments are acceptable.
	IncrementScanCount(ctx context.Context, id uuid.UUID) error
	UpdateChildCount(ctx context.Context, id uuid.UUID, n int) error
}

// ChildRepository defines the persistence contract for scored tiles.
type ChildRepository interface {
	// CreateBatch inserts all children of a freshly scanned parent in one
	// round trip.
	CreateBatch(ctx context.Context, cells []*ChildCell) error
	// ListByParent returns every child of a parent, paginating internally
	// past any single-query row cap.  When onlyPending is set the query is
	// narrowed to hotspots still awaiting analysis.
	ListByParent(ctx context.Context, parentID uuid.UUID, onlyPending bool) ([]*ChildCell, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChildCell, error)
	// UpdateState flips the analysis lifecycle state of a single cell.
	UpdateState(ctx context.Context, id uuid.UUID, state AnalysisState) error
}
