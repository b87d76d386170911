package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"backoffice/internal/platform/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
	pgNumericOverflow     = "22003"
)

// MapError turns driver errors into service errors for the given entity name.
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity + " not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(apperr.CodeConflict, entity+" already exists", err)
		case pgForeignKeyViolation:
			return apperr.Wrap(apperr.CodeValidation, "referenced record does not exist", err)
		case pgCheckViolation:
			return apperr.Wrap(apperr.CodeValidation, entity+" violates a data constraint", err)
		case pgStringTooLong:
			return apperr.Wrap(apperr.CodeValidation, entity+" has a value that is too long", err)
		case pgNumericOverflow:
			return apperr.Wrap(apperr.CodeValidation, entity+" has a number out of range", err)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// NullIfEmpty stores empty strings as NULL.
func NullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
