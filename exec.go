package tablekit

import (
	"context"
	stdsql "database/sql"
	"time"

	entdialect "entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// conn returns the execution target for ctx: the transaction attached to the
// context, if any, otherwise the shared driver.
func (s *Service) conn(ctx context.Context) entdialect.ExecQuerier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.conn()
	}
	return s.drv
}

// queryRecords runs a row-returning statement and scans every row into a
// Record. Database errors pass through the boundary translation.
func (s *Service) queryRecords(ctx context.Context, query string, args []any) ([]Record, error) {
	s.logStatement(ctx, "query", query, args)
	start := time.Now()
	var rows entsql.Rows
	err := s.conn(ctx).Query(ctx, query, args, &rows)
	s.observe(ctx, query, args, start, err, false)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return scanRecords(&rows)
}

// queryCount runs a count statement and coerces its scalar result.
func (s *Service) queryCount(ctx context.Context, query string, args []any) (int, error) {
	s.logStatement(ctx, "query", query, args)
	start := time.Now()
	var rows entsql.Rows
	err := s.conn(ctx).Query(ctx, query, args, &rows)
	s.observe(ctx, query, args, start, err, false)
	if err != nil {
		return 0, translateError(err)
	}
	defer rows.Close()
	return scanCount(&rows)
}

// exec runs a statement that returns no rows.
func (s *Service) exec(ctx context.Context, query string, args []any) (stdsql.Result, error) {
	s.logStatement(ctx, "exec", query, args)
	start := time.Now()
	var res stdsql.Result
	err := s.conn(ctx).Exec(ctx, query, args, &res)
	s.observe(ctx, query, args, start, err, true)
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}
