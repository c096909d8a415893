package repositories

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu008/HeatQuest/internal/domain/mission"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// MissionRepository is the PostgreSQL implementation of mission.Repository.
type MissionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewMissionRepository constructs a ready-to-use MissionRepository.
func NewMissionRepository(pool *pgxpool.Pool, logger logging.Logger) *MissionRepository {
	return &MissionRepository{pool: pool, logger: logger.Named("mission_repo")}
}

var _ mission.Repository = (*MissionRepository)(nil)

const missionColumns = `
	id, cell_analysis_id, child_cell_id, user_id, title, description,
	reasons, required_actions, location_type, heat_score, lat, lon, distance_m,
	status, points, completed_at, created_at, updated_at`

// Create inserts a mission.  The (cell_analysis_id, user_id) pair is unique;
// a violation means a mission was already generated for this analysis and is
// surfaced as ErrCodeMissionAlreadyExists.
func (r *MissionRepository) Create(ctx context.Context, m *mission.Mission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO missions (
			id, cell_analysis_id, child_cell_id, user_id, title, description,
			reasons, required_actions, location_type, heat_score, lat, lon, distance_m,
			status, points, completed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		m.ID, m.CellAnalysisID, m.ChildCellID, m.UserID, m.Title, m.Description,
		m.Reasons, m.RequiredActions, m.LocationType, m.HeatScore, m.Lat, m.Lon, m.DistanceM,
		m.Status, m.Points, m.CompletedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug("mission already exists for analysis",
				logging.String("analysis_id", m.CellAnalysisID.String()),
				logging.String("user_id", m.UserID))
			return errors.Wrap(err, errors.ErrCodeMissionAlreadyExists,
				"mission already exists for this analysis")
		}
		return wrapQueryErr(err, "failed to insert mission")
	}
	return nil
}

// GetByID fetches one mission by primary key.
func (r *MissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*mission.Mission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
	m, err := scanMission(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeMissionNotFound, "mission not found")
		}
		return nil, err
	}
	return m, nil
}

// ExistsForAnalysis reports whether any mission exists for the
// (analysisID, userID) pair.  This is the backup guard behind the analysis
// row's mission_generated flag.
func (r *MissionRepository) ExistsForAnalysis(ctx context.Context, analysisID uuid.UUID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM missions WHERE cell_analysis_id = $1 AND user_id = $2
		)`, analysisID, userID).Scan(&exists)
	if err != nil {
		return false, wrapQueryErr(err, "failed to check mission existence")
	}
	return exists, nil
}

// ListByUser returns a user's missions, newest first.  A non-nil status
// narrows the result to that lifecycle state.
func (r *MissionRepository) ListByUser(ctx context.Context, userID string, status *mission.Status) ([]*mission.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to query missions")
	}
	defer rows.Close()

	var out []*mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "failed to read missions")
	}
	return out, nil
}

// CountByStatus returns the user's mission count per lifecycle state.
func (r *MissionRepository) CountByStatus(ctx context.Context, userID string) (map[mission.Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM missions WHERE user_id = $1 GROUP BY status`,
		userID)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to count missions")
	}
	defer rows.Close()

	out := make(map[mission.Status]int)
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, wrapQueryErr(err, "failed to scan mission count")
		}
		out[mission.Status(s)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "failed to read mission counts")
	}
	return out, nil
}

// Update persists a mission's mutable fields (status, timestamps, content).
func (r *MissionRepository) Update(ctx context.Context, m *mission.Mission) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE missions SET
			title = $2, description = $3, reasons = $4, required_actions = $5,
			location_type = $6, status = $7, completed_at = $8, updated_at = $9
		WHERE id = $1`,
		m.ID, m.Title, m.Description, m.Reasons, m.RequiredActions,
		m.LocationType, m.Status, m.CompletedAt, m.UpdatedAt,
	)
	if err != nil {
		return wrapQueryErr(err, "failed to update mission")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeMissionNotFound, "mission not found")
	}
	return nil
}

func scanMission(row pgx.Row) (*mission.Mission, error) {
	var m mission.Mission
	err := row.Scan(
		&m.ID, &m.CellAnalysisID, &m.ChildCellID, &m.UserID, &m.Title, &m.Description,
		&m.Reasons, &m.RequiredActions, &m.LocationType, &m.HeatScore, &m.Lat, &m.Lon, &m.DistanceM,
		&m.Status, &m.Points, &m.CompletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrapQueryErr(err, "failed to scan mission")
	}
	return &m, nil
}
