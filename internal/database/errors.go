package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

const mysqlDuplicateEntry = 1062

// IsConstraintViolation reports whether err was raised by the store rejecting a row
// because of a uniqueness, not-null or other integrity constraint.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.IntegrityViolation()
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		// class 23: integrity constraint violation
		return strings.HasPrefix(pgxErr.Code, "23")
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	// sqlite drivers only expose the constraint through the message.
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
