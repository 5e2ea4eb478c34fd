package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrForeignKey   = errors.New("foreign key violation")
)

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// wrapError translates database errors into AppErrors the services understand.
// The sentinel stays reachable through errors.Is.
func wrapError(err error, resource, operation string) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return apperrors.NewNotFoundError(resource).WithCause(ErrNotFound)
	case IsDuplicateKeyViolation(err):
		return apperrors.NewConflictError(fmt.Sprintf("%s already exists", resource)).
			WithCause(fmt.Errorf("%w: %v", ErrDuplicateKey, err))
	case IsForeignKeyViolation(err):
		return apperrors.NewValidationError("INVALID_REFERENCE",
			fmt.Sprintf("%s references a missing entity", resource)).
			WithCause(fmt.Errorf("%w: %v", ErrForeignKey, err))
	default:
		return apperrors.NewInternalError(fmt.Sprintf("failed to %s %s", operation, resource)).WithCause(err)
	}
}
