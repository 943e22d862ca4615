package repository

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/valyx/checkout/internal/domain/inventory"
)

// PostgreSQL error codes that indicate a lost race rather than a bad request.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// asConflict translates concurrency-related PostgreSQL failures into
// inventory.ErrConflict so callers see one retryable error regardless of how
// the race was lost. Other errors pass through unchanged.
func asConflict(err error) error {
	switch pgCode(err) {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return errors.Wrap(inventory.ErrConflict, err.Error())
	}
	return err
}
