// Package repositories provides PostgreSQL-backed implementations of the
// HeatQuest domain repository interfaces.  Every method takes a
// context.Context and uses parameterised queries exclusively.
package repositories

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// pgUniqueViolation is the PostgreSQL error code raised when an insert hits a
// unique constraint.  Repositories translate it into a typed conflict error
// so callers can resolve create races by re-reading.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// wrapQueryErr gives non-conflict database errors a uniform code and message.
func wrapQueryErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeDatabaseError, msg)
}
