package tablekit

import (
	"context"
	"fmt"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
)

// Create inserts one record and returns it with the requested $select
// columns populated with post-write values.
func (s *Service) Create(ctx context.Context, data Record, q Query) (Record, error) {
	recs, err := s.createRows(ctx, []Record{data}, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("tablekit: insert into %s returned no row", s.table)
	}
	return recs[0], nil
}

// CreateMany inserts a batch of records in one statement, gated by the
// multi-create permission.
func (s *Service) CreateMany(ctx context.Context, data []Record, q Query) ([]Record, error) {
	if !s.multi.Create {
		return nil, &MethodNotAllowedError{Method: "create"}
	}
	if len(data) == 0 {
		return []Record{}, nil
	}
	return s.createRows(ctx, data, q)
}

func (s *Service) createRows(ctx context.Context, data []Record, q Query) ([]Record, error) {
	rows := make([]Record, len(data))
	for i, r := range data {
		rows[i] = normalizeRecord(s.dialect, r)
	}
	cols := columnUnion(rows)
	ins := s.insertFor(rows, cols)

	if s.dialect.SupportsReturning() {
		ins.Returning(s.returningCols(q)...)
		query, args := ins.Query()
		recs, err := s.queryRecords(ctx, query, args)
		if err != nil {
			return nil, err
		}
		s.invalidateCache(ctx)
		return recs, nil
	}

	// MySQL has no multi-row RETURNING: insert, then select the written rows
	// back by id.
	query, args := ins.Query()
	res, err := s.exec(ctx, query, args)
	if err != nil {
		return nil, err
	}
	ids, ok := explicitIDs(rows, s.idField)
	if !ok {
		first, err := res.LastInsertId()
		if err != nil {
			return nil, translateError(err)
		}
		// Assumes the statement's auto-increment ids are contiguous, which
		// holds per statement but not under interleaved writers with
		// innodb_autoinc_lock_mode=2.
		ids = make([]any, len(rows))
		for i := range rows {
			ids[i] = first + int64(i)
		}
	}
	s.invalidateCache(ctx)
	return s.fetchByIDs(ctx, ids, q)
}

// insertFor builds the insert statement over the union of row columns;
// absent columns insert NULL.
func (s *Service) insertFor(rows []Record, cols []string) *entsql.InsertBuilder {
	phys := make([]string, len(cols))
	for i, c := range cols {
		phys[i] = s.column(c)
	}
	ins := entsql.Dialect(s.dialect.String()).Insert(s.table).Columns(phys...)
	for _, r := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = r[c]
		}
		ins.Values(vals...)
	}
	return ins
}

// returningCols maps the requested select list to physical columns for a
// RETURNING clause; everything when no list was given.
func (s *Service) returningCols(q Query) []string {
	cols := s.selectFor(q)
	if cols == nil {
		return []string{"*"}
	}
	phys := make([]string, len(cols))
	for i, c := range cols {
		phys[i] = s.column(c)
	}
	return phys
}

// fetchByIDs selects the rows with the given ids and returns them in id
// order, matching loosely since drivers return numeric ids in assorted
// types.
func (s *Service) fetchByIDs(ctx context.Context, ids []any, q Query) ([]Record, error) {
	fq := Query{Where: Where{s.idField: Where{opIn: ids}}, Select: q.Select}
	sel, err := s.buildSelect(fq, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	index := make(map[string]Record, len(recs))
	for _, r := range recs {
		index[fmt.Sprint(r[s.idField])] = r
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := index[fmt.Sprint(id)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// columnUnion returns the sorted union of the keys of all rows.
func columnUnion(rows []Record) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// explicitIDs extracts caller-provided ids when every row carries one.
func explicitIDs(rows []Record, idField string) ([]any, bool) {
	ids := make([]any, len(rows))
	for i, r := range rows {
		id, ok := r[idField]
		if !ok || id == nil {
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}
