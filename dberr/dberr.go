// Package dberr classifies driver-level database errors into the constraint
// kinds the adapter's error taxonomy understands. Classification prefers the
// typed errors exposed by the PostgreSQL, MySQL and SQLite drivers and falls
// back to message matching for wrapped or third-party drivers.
package dberr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
)

// Kind is the classification of a database error.
type Kind int

const (
	// Unknown marks errors that are not recognized constraint violations.
	Unknown Kind = iota
	// UniqueConstraint marks duplicate-value violations of a unique index.
	UniqueConstraint
	// ForeignKeyConstraint marks missing-parent or referenced-child violations.
	ForeignKeyConstraint
	// CheckConstraint marks failed CHECK conditions.
	CheckConstraint
	// NotNullConstraint marks NULL writes into NOT NULL columns.
	NotNullConstraint
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign_key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not_null"
	}
	return "unknown"
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlNotNullViolation       = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQLite extended result codes for constraint violations (base code 19).
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// KindOf classifies err. It walks the error chain looking for the typed
// errors of the supported drivers before falling back to string matching.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgKind(string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr.Number)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return sqliteKind(liteErr.Code())
	}
	// Drivers with pgx-style SQLSTATE accessors but no pq.Error shape.
	if e, ok := asError[interface{ SQLState() string }](err); ok {
		if k := pgKind(e.SQLState()); k != Unknown {
			return k
		}
	}
	if e, ok := asError[interface{ Number() uint16 }](err); ok {
		if k := mysqlKind(e.Number()); k != Unknown {
			return k
		}
	}
	return messageKind(err.Error())
}

// IsConstraint reports whether err is any recognized constraint violation.
func IsConstraint(err error) bool { return KindOf(err) != Unknown }

// IsUniqueConstraint reports whether err resulted from a uniqueness
// violation, e.g. a duplicate value in a unique index.
func IsUniqueConstraint(err error) bool { return KindOf(err) == UniqueConstraint }

// IsForeignKeyConstraint reports whether err resulted from a foreign-key
// violation, e.g. a parent row that does not exist.
func IsForeignKeyConstraint(err error) bool { return KindOf(err) == ForeignKeyConstraint }

// IsCheckConstraint reports whether err resulted from a failed CHECK
// condition.
func IsCheckConstraint(err error) bool { return KindOf(err) == CheckConstraint }

// IsNotNullConstraint reports whether err resulted from writing NULL into a
// NOT NULL column.
func IsNotNullConstraint(err error) bool { return KindOf(err) == NotNullConstraint }

func pgKind(code string) Kind {
	switch code {
	case pgUniqueViolation:
		return UniqueConstraint
	case pgForeignKeyViolation:
		return ForeignKeyConstraint
	case pgCheckViolation:
		return CheckConstraint
	case pgNotNullViolation:
		return NotNullConstraint
	}
	return Unknown
}

func mysqlKind(number uint16) Kind {
	switch number {
	case mysqlDuplicateEntry:
		return UniqueConstraint
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return ForeignKeyConstraint
	case mysqlCheckConstraintViolate:
		return CheckConstraint
	case mysqlNotNullViolation:
		return NotNullConstraint
	}
	return Unknown
}

func sqliteKind(code int) Kind {
	switch code {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return UniqueConstraint
	case sqliteConstraintForeignKey:
		return ForeignKeyConstraint
	case sqliteConstraintCheck:
		return CheckConstraint
	case sqliteConstraintNotNull:
		return NotNullConstraint
	}
	return Unknown
}

// messageKind matches driver error strings for drivers that expose neither
// typed errors nor code accessors once wrapped.
func messageKind(msg string) Kind {
	switch {
	case containsAny(msg,
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	):
		return UniqueConstraint
	case containsAny(msg,
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
	):
		return ForeignKeyConstraint
	case containsAny(msg,
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
	):
		return CheckConstraint
	case containsAny(msg,
		"Error 1048",
		"violates not-null constraint",
		"NOT NULL constraint failed",
	):
		return NotNullConstraint
	}
	return Unknown
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
