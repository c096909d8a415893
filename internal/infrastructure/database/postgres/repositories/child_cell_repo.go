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

// childPageSize is the page size used when loading a parent's children.  A
// fully tiled parent can exceed a single query's practical row cap, so
// ListByParent always pages to exhaustion instead of trusting one round trip.
const childPageSize = 1000

// ChildCellRepository is the PostgreSQL implementation of
// cell.ChildRepository.
type ChildCellRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewChildCellRepository constructs a ready-to-use ChildCellRepository.
func NewChildCellRepository(pool *pgxpool.Pool, logger logging.Logger) *ChildCellRepository {
	return &ChildCellRepository{pool: pool, logger: logger.Named("child_cell_repo")}
}

var _ cell.ChildRepository = (*ChildCellRepository)(nil)

const childCellColumns = `
	id, parent_cell_id, grid_id, lat_min, lat_max, lon_min, lon_max,
	center_lat, center_lon, heat_score, temperature_c, ndvi, ndvi_source,
	scene_id, is_hotspot, analysis_state, created_at, updated_at`

// CreateBatch inserts all children of a scanned parent using pgx's batch
// pipeline: one network round trip, one implicit transaction.
func (r *ChildCellRepository) CreateBatch(ctx context.Context, cells []*cell.ChildCell) error {
	if len(cells) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range cells {
		batch.Queue(`
			INSERT INTO child_cells (
				id, parent_cell_id, grid_id, lat_min, lat_max, lon_min, lon_max,
				center_lat, center_lon, heat_score, temperature_c, ndvi, ndvi_source,
				scene_id, is_hotspot, analysis_state, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			c.ID, c.ParentCellID, c.GridID, c.LatMin, c.LatMax, c.LonMin, c.LonMax,
			c.CenterLat, c.CenterLon, c.HeatScore, c.TemperatureC, c.NDVI, c.NDVISource,
			c.SceneID, c.IsHotspot, c.State, c.CreatedAt, c.UpdatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range cells {
		if _, err := br.Exec(); err != nil {
			return wrapQueryErr(err, "failed to insert child cells")
		}
	}

	r.logger.Debug("inserted child cells", logging.Int("count", len(cells)))
	return nil
}

// ListByParent returns every child of a parent, paging through the table so
// the result is complete even when a parent holds more rows than a single
// query would return.  With onlyPending the query narrows to hotspot cells
// still awaiting analysis.
func (r *ChildCellRepository) ListByParent(ctx context.Context, parentID uuid.UUID, onlyPending bool) ([]*cell.ChildCell, error) {
	query := `SELECT ` + childCellColumns + `
		FROM child_cells
		WHERE parent_cell_id = $1`
	if onlyPending {
		query += ` AND is_hotspot AND analysis_state = 'pending_analysis'`
	}
	query += ` ORDER BY grid_id LIMIT $2 OFFSET $3`

	var out []*cell.ChildCell
	for offset := 0; ; offset += childPageSize {
		rows, err := r.pool.Query(ctx, query, parentID, childPageSize, offset)
		if err != nil {
			return nil, wrapQueryErr(err, "failed to query child cells")
		}

		page, err := scanChildCells(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)

		if len(page) < childPageSize {
			break
		}
	}
	return out, nil
}

// GetByID fetches a single child cell.
func (r *ChildCellRepository) GetByID(ctx context.Context, id uuid.UUID) (*cell.ChildCell, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+childCellColumns+` FROM child_cells WHERE id = $1`, id)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to query child cell")
	}
	cells, err := scanChildCells(rows)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, errors.New(errors.ErrCodeCellNotFound, "child cell not found")
	}
	return cells[0], nil
}

// UpdateState flips the analysis lifecycle state of one cell.
func (r *ChildCellRepository) UpdateState(ctx context.Context, id uuid.UUID, state cell.AnalysisState) error {
	if !state.Valid() {
		return errors.Newf(errors.ErrCodeBadRequest, "invalid analysis state %q", state)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE child_cells
		SET analysis_state = $2, updated_at = now()
		WHERE id = $1`, id, state)
	if err != nil {
		return wrapQueryErr(err, "failed to update analysis state")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeCellNotFound, "child cell not found")
	}
	return nil
}

func scanChildCells(rows pgx.Rows) ([]*cell.ChildCell, error) {
	defer rows.Close()

	var out []*cell.ChildCell
	for rows.Next() {
		var c cell.ChildCell
		err := rows.Scan(
			&c.ID, &c.ParentCellID, &c.GridID, &c.LatMin, &c.LatMax, &c.LonMin, &c.LonMax,
			&c.CenterLat, &c.CenterLon, &c.HeatScore, &c.TemperatureC, &c.NDVI, &c.NDVISource,
			&c.SceneID, &c.IsHotspot, &c.State, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, wrapQueryErr(err, "failed to scan child cell")
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return out, nil
		}
		return nil, wrapQueryErr(err, "failed to read child cells")
	}
	return out, nil
}
