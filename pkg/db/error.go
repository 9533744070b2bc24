package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailure  = "UNIQUE constraint failed"
	pgDuplicateKeyPrefix = "duplicate key value violates unique constraint"
)

// IsDuplicateKeyErr reports whether err is a unique index violation from any supported backend.
// Onboarding relies on it to turn a slug race into ErrSlugTaken.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	// Untranslated driver text, e.g. the pure-Go sqlite driver used in tests.
	msg := err.Error()
	return strings.Contains(msg, sqliteUniqueFailure) ||
		strings.Contains(msg, pgDuplicateKeyPrefix) ||
		strings.Contains(msg, "Error 1062")
}
