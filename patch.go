package tablekit

import (
	"context"
	"errors"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
)

// writeTarget is the resolved WHERE of an update or delete. On engines with
// RETURNING it is a predicate built directly from the caller's filters; on
// MySQL it is the concrete id set selected up front, reused afterwards to
// read the written rows back.
type writeTarget struct {
	pred *entsql.Predicate
	ids  []any
}

// whereForWrite resolves the write target for the given id (nil for bulk)
// and caller filters. The single-record form fails with NotFoundError when
// the MySQL pre-select matches nothing.
func (s *Service) whereForWrite(ctx context.Context, id any, q Query, b *entsql.DialectBuilder, t *entsql.SelectTable) (*writeTarget, error) {
	w := normalizeWhere(s.dialect, q.Where)
	if id != nil {
		w = s.andID(w, normalizeValue(s.dialect, id))
	}
	if s.dialect.SupportsReturning() {
		pred, err := s.compileWhere(compileCtx{b: b, t: t}, w)
		if err != nil {
			return nil, err
		}
		return &writeTarget{pred: pred}, nil
	}
	fq := Query{Where: w, Select: []string{s.idField}}
	sel, err := s.buildSelect(fq, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if id != nil && len(recs) == 0 {
		return nil, &NotFoundError{Table: s.table, Field: s.idField, ID: id}
	}
	ids := make([]any, len(recs))
	for i, r := range recs {
		ids[i] = r[s.idField]
	}
	return &writeTarget{pred: entsql.In(t.C(s.column(s.idField)), ids...), ids: ids}, nil
}

// Patch applies a partial update to the record with the given id, ANDed
// with any caller filters, and returns the record's post-write state.
func (s *Service) Patch(ctx context.Context, id any, data Record, q Query) (Record, error) {
	if id == nil {
		return nil, NewValidationError("id", errors.New("patch requires an id, use PatchMany for bulk patches"))
	}
	recs, err := s.patchRows(ctx, id, data, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Table: s.table, Field: s.idField, ID: id}
	}
	return recs[0], nil
}

// PatchMany applies a partial update to every record matching the query,
// gated by the multi-patch permission.
func (s *Service) PatchMany(ctx context.Context, data Record, q Query) ([]Record, error) {
	if !s.multi.Patch {
		return nil, &MethodNotAllowedError{Method: "patch"}
	}
	return s.patchRows(ctx, nil, data, q)
}

func (s *Service) patchRows(ctx context.Context, id any, data Record, q Query) ([]Record, error) {
	data = normalizeRecord(s.dialect, data)
	fields := make([]string, 0, len(data))
	for k := range data {
		if k != s.idField {
			fields = append(fields, k)
		}
	}
	if len(fields) == 0 {
		return nil, NewValidationError("data", errors.New("no fields to patch"))
	}
	sort.Strings(fields)

	b := entsql.Dialect(s.dialect.String())
	t := b.Table(s.table)
	target, err := s.whereForWrite(ctx, id, q, b, t)
	if err != nil {
		return nil, err
	}
	upd := b.Update(s.table)
	for _, k := range fields {
		upd.Set(s.column(k), data[k])
	}
	if target.pred != nil {
		upd.Where(target.pred)
	}
	query, args := upd.Query()

	if s.dialect.SupportsReturning() {
		recs, err := s.queryRecords(ctx, query+s.returningSuffix(s.selectFor(q)), args)
		if err != nil {
			return nil, err
		}
		s.invalidateCache(ctx)
		return recs, nil
	}
	if _, err := s.exec(ctx, query, args); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	// The verification select reuses the id set resolved before the write.
	return s.fetchByIDs(ctx, target.ids, q)
}
