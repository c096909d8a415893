package repositories

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edu008/HeatQuest/internal/domain/analysis"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// AnalysisRepository is the PostgreSQL implementation of analysis.Repository.
type AnalysisRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewAnalysisRepository constructs a ready-to-use AnalysisRepository.
func NewAnalysisRepository(pool *pgxpool.Pool, logger logging.Logger) *AnalysisRepository {
	return &AnalysisRepository{pool: pool, logger: logger.Named("analysis_repo")}
}

var _ analysis.Repository = (*AnalysisRepository)(nil)

const analysisColumns = `
	id, child_cell_id, user_id, summary, main_cause, location_type,
	suggested_actions, confidence, provider, mission_generated, created_at`

// Create inserts an analysis record.  child_cell_id carries a unique
// constraint; a violation means another request analyzed the cell first and
// is surfaced as a conflict.
func (r *AnalysisRepository) Create(ctx context.Context, a *analysis.CellAnalysis) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cell_analyses (
			id, child_cell_id, user_id, summary, main_cause, location_type,
			suggested_actions, confidence, provider, mission_generated, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.ChildCellID, a.UserID, a.Summary, a.MainCause, a.LocationType,
		a.SuggestedActions, a.Confidence, a.Provider, a.MissionGenerated, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, errors.ErrCodeConflict, "cell already analyzed")
		}
		return wrapQueryErr(err, "failed to insert cell analysis")
	}
	return nil
}

// GetByID fetches one analysis by primary key.
func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*analysis.CellAnalysis, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM cell_analyses WHERE id = $1`, id)
	return scanAnalysis(row)
}

// GetByChildCellID fetches the analysis belonging to a cell, if any.
func (r *AnalysisRepository) GetByChildCellID(ctx context.Context, childCellID uuid.UUID) (*analysis.CellAnalysis, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM cell_analyses WHERE child_cell_id = $1`, childCellID)
	return scanAnalysis(row)
}

// ExistsForCells returns which of childCellIDs already have an analysis row.
func (r *AnalysisRepository) ExistsForCells(ctx context.Context, childCellIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(childCellIDs))
	if len(childCellIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT child_cell_id FROM cell_analyses WHERE child_cell_id = ANY($1)`, childCellIDs)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to query existing analyses")
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapQueryErr(err, "failed to scan analysis id")
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "failed to read existing analyses")
	}
	return out, nil
}

// ListUnmissioned returns a user's analyses that have not yet produced a
// mission, newest first.
func (r *AnalysisRepository) ListUnmissioned(ctx context.Context, userID string, limit int) ([]*analysis.CellAnalysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM cell_analyses
		WHERE user_id = $1 AND NOT mission_generated
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to query unmissioned analyses")
	}
	defer rows.Close()

	var out []*analysis.CellAnalysis
	for rows.Next() {
		a, err := scanAnalysisFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "failed to read unmissioned analyses")
	}
	return out, nil
}

// MarkMissionGenerated flips the primary mission-dedup flag.
func (r *AnalysisRepository) MarkMissionGenerated(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cell_analyses SET mission_generated = TRUE WHERE id = $1`, id)
	if err != nil {
		return wrapQueryErr(err, "failed to mark mission generated")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeAnalysisNotFound, "cell analysis not found")
	}
	return nil
}

func scanAnalysis(row pgx.Row) (*analysis.CellAnalysis, error) {
	var a analysis.CellAnalysis
	err := row.Scan(
		&a.ID, &a.ChildCellID, &a.UserID, &a.Summary, &a.MainCause, &a.LocationType,
		&a.SuggestedActions, &a.Confidence, &a.Provider, &a.MissionGenerated, &a.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeAnalysisNotFound, "cell analysis not found")
		}
		return nil, wrapQueryErr(err, "failed to scan cell analysis")
	}
	return &a, nil
}

func scanAnalysisFromRows(rows pgx.Rows) (*analysis.CellAnalysis, error) {
	var a analysis.CellAnalysis
	err := rows.Scan(
		&a.ID, &a.ChildCellID, &a.UserID, &a.Summary, &a.MainCause, &a.LocationType,
		&a.SuggestedActions, &a.Confidence, &a.Provider, &a.MissionGenerated, &a.CreatedAt,
	)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to scan cell analysis")
	}
	return &a, nil
}
