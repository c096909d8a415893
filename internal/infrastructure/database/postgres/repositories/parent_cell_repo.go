package repositories

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu008/HeatQuest/internal/domain/cell"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// ParentCellRepository is the PostgreSQL implementation of
// cell.ParentRepository.
type ParentCellRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewParentCellRepository constructs a ready-to-use ParentCellRepository.
func NewParentCellRepository(pool *pgxpool.Pool, logger logging.Logger) *ParentCellRepository {
	return &ParentCellRepository{pool: pool, logger: logger.Named("parent_cell_repo")}
}

var _ cell.ParentRepository = (*ParentCellRepository)(nil)

const parentCellColumns = `
	id, cell_key, lat_min, lat_max, lon_min, lon_max,
	center_lat, center_lon, scan_count, child_count,
	scanned_at, created_at, updated_at`

// Create inserts a new parent row.  A unique violation on cell_key is
// translated to ErrCodeCellAlreadyExists so callers can adopt the winner's
// row instead of failing.
func (r *ParentCellRepository) Create(ctx context.Context, p *cell.ParentCell) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO parent_cells (
			id, cell_key, lat_min, lat_max, lon_min, lon_max,
			center_lat, center_lon, scan_count, child_count,
			scanned_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.CellKey, p.LatMin, p.LatMax, p.LonMin, p.LonMax,
		p.CenterLat, p.CenterLon, p.ScanCount, p.ChildCount,
		p.ScannedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("parent cell create raced", logging.String("cell_key", p.CellKey))
			return errors.Wrap(err, errors.ErrCodeCellAlreadyExists, "parent cell already exists")
		}
		return wrapQueryErr(err, "failed to insert parent cell")
	}
	return nil
}

// GetByKey fetches a parent cell by its canonical cache key.
func (r *ParentCellRepository) GetByKey(ctx context.Context, cellKey string) (*cell.ParentCell, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+parentCellColumns+` FROM parent_cells WHERE cell_key = $1`, cellKey)
	return scanParentCell(row)
}

// GetByID fetches a parent cell by primary key.
func (r *ParentCellRepository) GetByID(ctx context.Context, id uuid.UUID) (*cell.ParentCell, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+parentCellColumns+` FROM parent_cells WHERE id = $1`, id)
	return scanParentCell(row)
}

// IncrementScanCount bumps the cache-hit counter.  The update is a single
// statement so individual increments are atomic, but callers treat the whole
// operation as best effort.
func (r *ParentCellRepository) IncrementScanCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE parent_cells
		SET scan_count = scan_count + 1, updated_at = now()
		WHERE id = $1`, id)
	return wrapQueryErr(err, "failed to increment scan count")
}

// UpdateChildCount records how many children a freshly scanned parent holds.
func (r *ParentCellRepository) UpdateChildCount(ctx context.Context, id uuid.UUID, n int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE parent_cells
		SET child_count = $2, updated_at = now()
		WHERE id = $1`, id, n)
	return wrapQueryErr(err, "failed to update child count")
}

func scanParentCell(row pgx.Row) (*cell.ParentCell, error) {
	var p cell.ParentCell
	err := row.Scan(
		&p.ID, &p.CellKey, &p.LatMin, &p.LatMax, &p.LonMin, &p.LonMax,
		&p.CenterLat, &p.CenterLon, &p.ScanCount, &p.ChildCount,
		&p.ScannedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeCellNotFound, "parent cell not found")
		}
		return nil, wrapQueryErr(err, "failed to scan parent cell")
	}
	return &p, nil
}
