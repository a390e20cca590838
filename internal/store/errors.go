package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrDuplicateKey is returned when a write collides with an existing identity key.
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrInvalidRecord is returned when the backend rejects a record's values.
	ErrInvalidRecord = errors.New("invalid record")
)

// WrapError wraps driver errors with the operation name and maps them to the sentinels above.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", operation, ErrDuplicateKey)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w (constraint: %s)", operation, ErrDuplicateKey, pgErr.ConstraintName)
		case isItemLevelCode(pgErr.Code):
			return fmt.Errorf("%s: %w [%s]: %s", operation, ErrInvalidRecord, pgErr.Code, pgErr.Message)
		default:
			return fmt.Errorf("%s: database error [%s]: %w", operation, pgErr.Code, err)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// isItemLevelCode reports whether a SQLSTATE concerns one row's data rather than the connection:
// class 22 is data exception and class 23 is integrity constraint violation.
func isItemLevelCode(code string) bool {
	return len(code) == 5 && (code[:2] == "22" || code[:2] == "23")
}

// IsDuplicateKey returns true if the error is an ErrDuplicateKey error.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsInvalidRecord returns true if the error is an ErrInvalidRecord error.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrInvalidRecord)
}
