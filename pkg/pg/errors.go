package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pg.errors.open_connection")
	ErrEmptyConnectionString    = errors.New("pg.errors.empty_connection_string")
	ErrHealthcheckFailed        = errors.New("pg.errors.healthcheck_failed")
	ErrFailedToParseDBConfig    = errors.New("pg.errors.parse_config")
	ErrFailedToApplyMigrations  = errors.New("pg.errors.apply_migrations")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// IsForeignKeyViolationError reports a row referencing a missing parent,
// such as a subscription for a plan id the plans table does not hold.
func IsForeignKeyViolationError(err error) bool {
	return sqlState(err) == codeForeignKeyViolation
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
