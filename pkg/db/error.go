package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if HasPGCode(err, pgUniqueViolation) {
		return true
	}

	msg := err.Error()
	// PostgreSQL without pgconn wrapping
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	// MySQL (error code 1062)
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	// SQLite (error code 2067)
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsRetryable reports errors that a later attempt may succeed on.
func IsRetryable(err error) bool {
	return HasPGCode(err, pgSerializationFailure) || HasPGCode(err, pgLockNotAvailable)
}

// HasPGCode matches both driver error types: gorm runs on pgx while the
// migration runner talks to postgres through lib/pq.
func HasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
