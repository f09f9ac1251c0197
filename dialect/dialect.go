package dialect

import (
	"math"
	"strings"
)

// Dialect identifies a supported SQL engine. The zero value is not a valid
// dialect; construct one from the constants below or with Detect.
type Dialect string

// Supported dialects.
const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
)

// String returns the dialect name as understood by the underlying
// query builder and database/sql driver registry.
func (d Dialect) String() string { return string(d) }

// Valid reports whether d is one of the supported dialects.
func (d Dialect) Valid() bool {
	switch d {
	case Postgres, MySQL, SQLite, MSSQL:
		return true
	}
	return false
}

// SupportsReturning reports whether the engine can yield affected rows from
// INSERT/UPDATE/DELETE statements in the same round trip. MySQL cannot and
// requires a follow-up SELECT; MSSQL uses OUTPUT, which the underlying
// builder does not render.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres || d == SQLite
}

// SupportsArrayOperators reports whether the engine understands the
// @>, <@ and && array operators.
func (d Dialect) SupportsArrayOperators() bool {
	return d == Postgres
}

// SupportsNullsOrdering reports whether the engine accepts the
// NULLS FIRST/LAST modifiers in ORDER BY. MySQL needs an
// "(col IS NULL)" emulation expression instead.
func (d Dialect) SupportsNullsOrdering() bool {
	return d == Postgres || d == SQLite
}

// NoLimit returns the sentinel LIMIT value the engine requires when an
// OFFSET is given without a LIMIT, or 0 if the engine allows a bare OFFSET.
// SQLite uses -1. MySQL's documented sentinel is the maximum unsigned 64-bit
// integer; the builder takes an int, so the platform's maximum signed value
// is used (no real result set approaches either bound).
func (d Dialect) NoLimit() int {
	switch d {
	case SQLite:
		return -1
	case MySQL:
		return math.MaxInt
	}
	return 0
}

// Detect resolves a dialect from a driver or connection name by substring
// match against known markers. Unrecognized names fall back to SQLite, so
// callers that know their engine should pass an explicit Dialect instead.
func Detect(name string) Dialect {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "sqlite"):
		return SQLite
	case strings.Contains(name, "postgres"), strings.Contains(name, "pgx"):
		return Postgres
	case strings.Contains(name, "mysql"), strings.Contains(name, "maria"):
		return MySQL
	case strings.Contains(name, "mssql"), strings.Contains(name, "sqlserver"):
		return MSSQL
	}
	return SQLite
}
