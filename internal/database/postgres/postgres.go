// Package postgres provides the PostgreSQL-backed repositories for links,
// their visit history and the rate-limit window entries.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationErrCode is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolationErrCode = "23505"

// isUniqueViolationError checks if the given error is a PostgreSQL unique
// constraint violation.
func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}
