// Package dialect identifies the SQL engines tablekit can target and the
// engine-specific capabilities the adapter branches on.
//
// # Supported Dialects
//
// Each dialect is identified by a constant:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.MSSQL    = "mssql"
//
// MSSQL is recognized by Detect but is not accepted by the service layer: the
// underlying query builder renders neither its placeholders nor OUTPUT
// clauses.
//
// # Capabilities
//
// Rather than sniffing driver names at query time, the adapter asks the
// dialect what it can do:
//
//	d.SupportsReturning()      // RETURNING on INSERT/UPDATE/DELETE
//	d.SupportsArrayOperators() // @>, <@, &&
//	d.SupportsNullsOrdering()  // NULLS FIRST/LAST in ORDER BY
//	d.NoLimit()                // LIMIT sentinel for a bare OFFSET
//
// Detect exists only as a constructor-time fallback for callers that hand
// over a driver without naming its engine:
//
//	d := dialect.Detect(drv.Dialect()) // substring match, defaults to SQLite
package dialect
